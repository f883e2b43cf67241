package preferences

import (
	"time"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// Record models the list_view_preferences row.
type Record struct {
	bun.BaseModel `bun:"table:list_view_preferences"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid"`
	Scope          string         `bun:"scope,notnull"`
	UserID         uuid.UUID      `bun:"user_id,type:uuid,nullzero"`
	OrgID          uuid.UUID      `bun:"organization_id,type:uuid,notnull"`
	ListType       string         `bun:"list_type,notnull"`
	VisibleColumns []string       `bun:"visible_columns,type:jsonb,notnull"`
	DefaultSort    string         `bun:"default_sort,notnull"`
	SavedFilters   map[string]any `bun:"saved_filters,type:jsonb,notnull"`
	ItemsPerPage   int            `bun:"items_per_page,notnull"`
	CreatedAt      time.Time      `bun:"created_at,notnull"`
	UpdatedAt      time.Time      `bun:"updated_at,notnull"`
	CreatedBy      uuid.UUID      `bun:"created_by,type:uuid,nullzero"`
	UpdatedBy      uuid.UUID      `bun:"updated_by,type:uuid,nullzero"`
}

func fromDomain(pref types.ListPreference) *Record {
	columns := pref.VisibleColumns
	if columns == nil {
		columns = []string{}
	}
	filters := pref.SavedFilters
	if filters == nil {
		filters = map[string]any{}
	}
	rec := &Record{
		ID:             pref.ID,
		Scope:          string(pref.Scope),
		OrgID:          pref.OrgID,
		ListType:       string(pref.ListType),
		VisibleColumns: append([]string{}, columns...),
		DefaultSort:    pref.DefaultSort,
		SavedFilters:   cloneMap(filters),
		ItemsPerPage:   pref.ItemsPerPage,
		CreatedAt:      pref.CreatedAt,
		UpdatedAt:      pref.UpdatedAt,
		CreatedBy:      pref.CreatedBy,
		UpdatedBy:      pref.UpdatedBy,
	}
	if pref.Scope == types.PreferenceScopeUser {
		rec.UserID = pref.UserID
	}
	return rec
}

func toDomain(rec *Record) types.ListPreference {
	if rec == nil {
		return types.ListPreference{}
	}
	scope := types.PreferenceScope(rec.Scope)
	source := types.PreferenceSourceOrganization
	if scope == types.PreferenceScopeUser {
		source = types.PreferenceSourceUser
	}
	columns := rec.VisibleColumns
	if columns == nil {
		columns = []string{}
	}
	filters := cloneMap(rec.SavedFilters)
	if filters == nil {
		filters = map[string]any{}
	}
	return types.ListPreference{
		ID:             rec.ID,
		Scope:          scope,
		UserID:         rec.UserID,
		OrgID:          rec.OrgID,
		ListType:       types.ListType(rec.ListType),
		VisibleColumns: append([]string{}, columns...),
		DefaultSort:    rec.DefaultSort,
		SavedFilters:   filters,
		ItemsPerPage:   rec.ItemsPerPage,
		Source:         source,
		Persisted:      true,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		CreatedBy:      rec.CreatedBy,
		UpdatedBy:      rec.UpdatedBy,
	}
}

func toDomainPtr(rec *Record) *types.ListPreference {
	pref := toDomain(rec)
	return &pref
}

func cloneMap(origin map[string]any) map[string]any {
	if origin == nil {
		return nil
	}
	out := make(map[string]any, len(origin))
	for k, v := range origin {
		out[k] = v
	}
	return out
}
