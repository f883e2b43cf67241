package preferences

import (
	"context"
	"fmt"

	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

const (
	fieldVisibleColumns = "visible_columns"
	fieldDefaultSort    = "default_sort"
	fieldSavedFilters   = "saved_filters"
	fieldItemsPerPage   = "items_per_page"
)

// ResolverConfig wires dependencies for the preference resolver.
type ResolverConfig struct {
	Repository types.PreferenceRepository
	Logger     types.Logger
}

// Resolver picks the effective list preference across the user,
// organization and hardcoded default tiers.
type Resolver struct {
	repo   types.PreferenceRepository
	logger types.Logger
}

// ResolveInput identifies the list view being resolved. UserID is optional.
type ResolveInput struct {
	UserID   uuid.UUID
	OrgID    uuid.UUID
	ListType types.ListType
}

// NewResolver constructs a preference resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Repository == nil {
		return nil, fmt.Errorf("preferences: repository required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Resolver{
		repo:   cfg.Repository,
		logger: logger,
	}, nil
}

// Resolve returns the first persisted tier (user, then organization) or the
// hardcoded defaults. Empty columns or sort on a stored row are filled from
// the defaults in the returned value only.
func (r *Resolver) Resolve(ctx context.Context, input ResolveInput) (types.ListPreference, error) {
	def, err := columns.Definition(input.ListType)
	if err != nil {
		r.logger.Warn("unknown list type", "list_type", string(input.ListType))
		return types.ListPreference{}, err
	}
	if input.OrgID == uuid.Nil {
		return types.ListPreference{}, types.ValidationError(types.ErrOrganizationRequired, types.TextCodeOrganizationRequired, nil)
	}

	winner, err := r.winningTier(ctx, input, def.ListType)
	if err != nil {
		return types.ListPreference{}, err
	}
	defaults := def.Defaults()
	defaults.OrgID = input.OrgID
	defaults.UserID = input.UserID
	if winner == nil {
		r.logger.Debug("no stored list preference, using defaults",
			"organization_id", input.OrgID.String(),
			"list_type", string(def.ListType),
		)
		return defaults, nil
	}

	merged, err := mergeTiers(defaults, *winner)
	if err != nil {
		return types.ListPreference{}, err
	}
	r.logger.Debug("resolved list preference",
		"organization_id", input.OrgID.String(),
		"list_type", string(def.ListType),
		"source", string(merged.Source),
	)
	return merged, nil
}

func (r *Resolver) winningTier(ctx context.Context, input ResolveInput, listType types.ListType) (*types.ListPreference, error) {
	if input.UserID != uuid.Nil {
		pref, err := r.repo.FindPreference(ctx, types.PreferenceKey{
			Scope:    types.PreferenceScopeUser,
			UserID:   input.UserID,
			OrgID:    input.OrgID,
			ListType: listType,
		})
		if err != nil || pref != nil {
			return pref, err
		}
	}
	return r.repo.FindPreference(ctx, types.PreferenceKey{
		Scope:    types.PreferenceScopeOrganization,
		OrgID:    input.OrgID,
		ListType: listType,
	})
}

// mergeTiers layers the stored row over the defaults. Empty columns and sort
// are left out of the stored layer so the defaults show through.
func mergeTiers(defaults, stored types.ListPreference) (types.ListPreference, error) {
	system := opts.NewScope("system", opts.ScopePrioritySystem,
		opts.WithScopeLabel("System Defaults"))
	stack, err := opts.NewStack(
		opts.NewLayer(system, layerValues(defaults, false), opts.WithSnapshotID[map[string]any](system.Name)),
		tierLayer(stored),
	)
	if err != nil {
		return types.ListPreference{}, err
	}
	merged, err := stack.Merge()
	if err != nil {
		return types.ListPreference{}, err
	}

	out := stored
	out.VisibleColumns = stringSlice(merged.Value[fieldVisibleColumns])
	out.DefaultSort, _ = merged.Value[fieldDefaultSort].(string)
	if filters, ok := merged.Value[fieldSavedFilters].(map[string]any); ok {
		out.SavedFilters = filters
	}
	if perPage := intValue(merged.Value[fieldItemsPerPage]); perPage > 0 {
		out.ItemsPerPage = perPage
	}
	return out, nil
}

func tierLayer(pref types.ListPreference) opts.Layer[map[string]any] {
	meta := map[string]any{
		"organization_id": pref.OrgID.String(),
		"list_type":       string(pref.ListType),
	}
	name, label, priority := "org", "Organization", opts.ScopePriorityOrg
	if pref.Scope == types.PreferenceScopeUser {
		meta["user_id"] = pref.UserID.String()
		name, label, priority = "user", "User", opts.ScopePriorityUser
	}
	scope := opts.NewScope(name, priority,
		opts.WithScopeLabel(label),
		opts.WithScopeMetadata(meta))
	return opts.NewLayer(scope, layerValues(pref, true), opts.WithSnapshotID[map[string]any](pref.ID.String()))
}

func layerValues(pref types.ListPreference, skipEmpty bool) map[string]any {
	filters := cloneMap(pref.SavedFilters)
	if filters == nil {
		filters = map[string]any{}
	}
	values := map[string]any{
		fieldSavedFilters: filters,
		fieldItemsPerPage: pref.ItemsPerPage,
	}
	if !skipEmpty || len(pref.VisibleColumns) > 0 {
		values[fieldVisibleColumns] = append([]string{}, pref.VisibleColumns...)
	}
	if !skipEmpty || pref.DefaultSort != "" {
		values[fieldDefaultSort] = pref.DefaultSort
	}
	return values
}

func stringSlice(v any) []string {
	switch cols := v.(type) {
	case []string:
		return append([]string{}, cols...)
	case []any:
		out := make([]string, 0, len(cols))
		for _, c := range cols {
			if s, ok := c.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
