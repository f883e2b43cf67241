package query

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/filters"
	"github.com/thrivehealth/go-listviews/listquery"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/preferences"
	"github.com/thrivehealth/go-listviews/scope"
)

// ListRecordsInput requests one page of a list view. Nil Columns and Filters
// and an empty Sort fall back to the resolved preference. Zero Page and
// PerPage do the same for pagination.
type ListRecordsInput struct {
	Scope    types.ScopeFilter
	UserID   uuid.UUID
	ListType types.ListType
	Columns  []string
	Sort     string
	Filters  map[string]any
	Page     int
	PerPage  int
	Actor    types.ActorRef
}

// ListRecordsResult carries the rows and the effective view configuration
// used to build them.
type ListRecordsResult struct {
	Preference types.ListPreference `json:"preference"`
	Columns    []string             `json:"columns"`
	Sort       string               `json:"sort"`
	Filters    map[string]any       `json:"filters"`
	Page       listquery.Page       `json:"page"`
}

type sortValidator interface {
	ValidateSortField(ctx context.Context, listType types.ListType, orgID uuid.UUID, sort string) error
}

// ListRecordsConfig wires dependencies for the list records query.
type ListRecordsConfig struct {
	Engine     *listquery.Engine
	Resolver   preferenceResolver
	Columns    sortValidator
	ScopeGuard scope.Guard
	Logger     types.Logger
}

// ListRecordsQuery runs the full list pipeline: resolve the preference, apply
// request overrides, validate the sort, annotate, filter, sort and paginate.
type ListRecordsQuery struct {
	engine   *listquery.Engine
	resolver preferenceResolver
	columns  sortValidator
	guard    scope.Guard
	logger   types.Logger
}

// NewListRecordsQuery constructs the query helper.
func NewListRecordsQuery(cfg ListRecordsConfig) *ListRecordsQuery {
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &ListRecordsQuery{
		engine:   cfg.Engine,
		resolver: cfg.Resolver,
		columns:  cfg.Columns,
		guard:    safeScopeGuard(cfg.ScopeGuard),
		logger:   logger,
	}
}

var _ gocommand.Querier[ListRecordsInput, ListRecordsResult] = (*ListRecordsQuery)(nil)

// Query builds and executes the list query.
func (q *ListRecordsQuery) Query(ctx context.Context, input ListRecordsInput) (ListRecordsResult, error) {
	if q.engine == nil {
		return ListRecordsResult{}, types.ErrMissingQueryEngine
	}
	if q.resolver == nil {
		return ListRecordsResult{}, types.ErrMissingPreferenceResolver
	}
	def, err := columns.Definition(input.ListType)
	if err != nil {
		return ListRecordsResult{}, err
	}
	resolved, err := q.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionListsRead, input.UserID)
	if err != nil {
		return ListRecordsResult{}, err
	}

	pref, err := q.resolver.Resolve(ctx, preferences.ResolveInput{
		UserID:   input.UserID,
		OrgID:    resolved.OrgID,
		ListType: def.ListType,
	})
	if err != nil {
		return ListRecordsResult{}, err
	}

	visible := pref.VisibleColumns
	if input.Columns != nil {
		visible = input.Columns
	}
	doc := pref.SavedFilters
	if input.Filters != nil {
		doc = input.Filters
	}
	perPage := pref.ItemsPerPage
	if input.PerPage > 0 {
		perPage = input.PerPage
	}

	var diags types.Diagnostics
	sort, err := q.effectiveSort(ctx, def, resolved.OrgID, input.Sort, pref.DefaultSort, &diags)
	if err != nil {
		return ListRecordsResult{}, err
	}
	spec, parseDiags := filters.Parse(doc)
	diags.Merge(parseDiags)

	subjectScope := types.SubjectScope{OrgID: resolved.OrgID, Kind: def.SubjectKind}
	lq, err := q.engine.NewQuery(subjectScope)
	if err != nil {
		return ListRecordsResult{}, err
	}
	lq.Diagnostics.Merge(diags)
	if lq, err = q.engine.Annotate(ctx, lq, visible, subjectScope); err != nil {
		return ListRecordsResult{}, err
	}
	if lq, err = q.engine.ApplyFilters(ctx, lq, spec, subjectScope); err != nil {
		return ListRecordsResult{}, err
	}
	if lq, err = q.engine.ApplySort(ctx, lq, sort, subjectScope); err != nil {
		return ListRecordsResult{}, err
	}
	page, err := q.engine.Fetch(ctx, lq, types.Pagination{Page: input.Page, PerPage: perPage})
	if err != nil {
		return ListRecordsResult{}, err
	}
	if !page.Diagnostics.Empty() {
		q.logger.Warn("list query built with skipped clauses",
			"list_type", string(def.ListType),
			"organization_id", resolved.OrgID.String(),
			"skipped", len(page.Diagnostics.Skipped),
		)
	}

	return ListRecordsResult{
		Preference: pref,
		Columns:    append([]string{}, visible...),
		Sort:       sort,
		Filters:    spec.Document(),
		Page:       page,
	}, nil
}

// effectiveSort picks the requested sort, then the preference sort, then the
// list default. Candidates that fail validation are reported and skipped.
func (q *ListRecordsQuery) effectiveSort(ctx context.Context, def columns.ListDefinition, orgID uuid.UUID, requested, preferred string, diags *types.Diagnostics) (string, error) {
	if q.columns == nil {
		if requested != "" {
			return requested, nil
		}
		return preferred, nil
	}
	for _, candidate := range []string{requested, preferred} {
		if candidate == "" {
			continue
		}
		err := q.columns.ValidateSortField(ctx, def.ListType, orgID, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, types.ErrInvalidSortField) {
			return "", err
		}
		q.logger.Warn("invalid sort field, falling back",
			"list_type", string(def.ListType),
			"sort", candidate,
		)
		diags.Skip(types.ClauseStageSort, candidate, types.SkipReasonInvalidSort, nil)
	}
	return def.DefaultSort, nil
}
