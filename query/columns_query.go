package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

// AvailableColumnsInput selects a column catalog. Without an organization
// only the fixed columns are returned.
type AvailableColumnsInput struct {
	Scope    types.ScopeFilter
	ListType types.ListType
	Actor    types.ActorRef
}

type columnCatalog interface {
	AvailableColumns(ctx context.Context, listType types.ListType, orgID uuid.UUID) ([]types.Column, error)
}

// AvailableColumnsQuery lists the fixed and custom columns of a list type.
type AvailableColumnsQuery struct {
	catalog columnCatalog
	guard   scope.Guard
}

// NewAvailableColumnsQuery constructs the query helper.
func NewAvailableColumnsQuery(catalog columnCatalog, guard scope.Guard) *AvailableColumnsQuery {
	return &AvailableColumnsQuery{
		catalog: catalog,
		guard:   safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[AvailableColumnsInput, []types.Column] = (*AvailableColumnsQuery)(nil)

// Query returns the catalog for the resolved organization.
func (q *AvailableColumnsQuery) Query(ctx context.Context, input AvailableColumnsInput) ([]types.Column, error) {
	if q.catalog == nil {
		return nil, types.ErrMissingAttributeRegistry
	}
	resolved, err := q.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionAttributesRead, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return q.catalog.AvailableColumns(ctx, input.ListType, resolved.OrgID)
}
