package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/preferences"
	"github.com/thrivehealth/go-listviews/scope"
)

// ResolvePreferenceInput identifies the list view to resolve. A zero UserID
// resolves the organization default.
type ResolvePreferenceInput struct {
	Scope    types.ScopeFilter
	UserID   uuid.UUID
	ListType types.ListType
	Actor    types.ActorRef
}

type preferenceResolver interface {
	Resolve(ctx context.Context, input preferences.ResolveInput) (types.ListPreference, error)
}

// ResolvePreferenceQuery resolves the effective list preference via the
// injected resolver.
type ResolvePreferenceQuery struct {
	resolver preferenceResolver
	guard    scope.Guard
}

// NewResolvePreferenceQuery constructs the query helper.
func NewResolvePreferenceQuery(resolver preferenceResolver, guard scope.Guard) *ResolvePreferenceQuery {
	return &ResolvePreferenceQuery{
		resolver: resolver,
		guard:    safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[ResolvePreferenceInput, types.ListPreference] = (*ResolvePreferenceQuery)(nil)

// Query resolves the user, organization and default tiers in order.
func (q *ResolvePreferenceQuery) Query(ctx context.Context, input ResolvePreferenceInput) (types.ListPreference, error) {
	if q.resolver == nil {
		return types.ListPreference{}, types.ErrMissingPreferenceResolver
	}
	resolved, err := q.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionPreferencesRead, input.UserID)
	if err != nil {
		return types.ListPreference{}, err
	}
	return q.resolver.Resolve(ctx, preferences.ResolveInput{
		UserID:   input.UserID,
		OrgID:    resolved.OrgID,
		ListType: input.ListType,
	})
}
