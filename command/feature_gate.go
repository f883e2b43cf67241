package command

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

// FeatureUserPreferences gates personal (USER scope) list preference saves.
const FeatureUserPreferences = "listviews.user_preferences"

func featureEnabled(ctx context.Context, gate featuregate.FeatureGate, key string, scope types.ScopeFilter, userID uuid.UUID) (bool, error) {
	if gate == nil {
		return true, nil
	}
	chain := featureScopeChain(scope, userID)
	if len(chain) == 0 {
		return gate.Enabled(ctx, key)
	}
	return gate.Enabled(ctx, key, featuregate.WithScopeChain(chain))
}

// featureScopeChain orders scopes from most to least specific: user, org,
// then system.
func featureScopeChain(scope types.ScopeFilter, userID uuid.UUID) featuregate.ScopeChain {
	orgID := ""
	if scope.OrgID != uuid.Nil {
		orgID = scope.OrgID.String()
	}
	if orgID == "" && userID == uuid.Nil {
		return nil
	}
	chain := make(featuregate.ScopeChain, 0, 3)
	if userID != uuid.Nil {
		chain = append(chain, featuregate.ScopeRef{Kind: featuregate.ScopeUser, ID: userID.String(), OrgID: orgID})
	}
	if orgID != "" {
		chain = append(chain, featuregate.ScopeRef{Kind: featuregate.ScopeOrg, ID: orgID, OrgID: orgID})
	}
	return append(chain, featuregate.ScopeRef{Kind: featuregate.ScopeSystem})
}
