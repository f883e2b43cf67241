package query

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

// ActivityFeedInput scopes an activity feed request.
type ActivityFeedInput struct {
	Actor  types.ActorRef
	Scope  types.ScopeFilter
	Filter types.ActivityFilter
}

// ActivityFeedQuery renders paginated activity feeds for dashboards.
type ActivityFeedQuery struct {
	repo  types.ActivityRepository
	guard scope.Guard
}

// NewActivityFeedQuery constructs the feed query helper.
func NewActivityFeedQuery(repo types.ActivityRepository, guard scope.Guard) *ActivityFeedQuery {
	return &ActivityFeedQuery{
		repo:  repo,
		guard: safeScopeGuard(guard),
	}
}

var _ gocommand.Querier[ActivityFeedInput, types.ActivityPage] = (*ActivityFeedQuery)(nil)

// Query fetches a page of activity logs for the resolved organization.
func (q *ActivityFeedQuery) Query(ctx context.Context, input ActivityFeedInput) (types.ActivityPage, error) {
	if q.repo == nil {
		return types.ActivityPage{}, types.ErrMissingActivityRepository
	}
	resolved, err := q.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionActivityRead, uuid.Nil)
	if err != nil {
		return types.ActivityPage{}, err
	}
	filter := input.Filter
	filter.OrgID = resolved.OrgID
	return q.repo.ListActivity(ctx, filter)
}
