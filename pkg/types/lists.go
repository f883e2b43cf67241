package types

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultItemsPerPage is the page size used when no preference sets one.
	DefaultItemsPerPage = 25
	// DefaultSort is the sort expression used when no preference sets one.
	DefaultSort = "-updated_at"
)

// ListType identifies a list view with its own column/sort/filter catalog.
type ListType string

const (
	ListTypeEncounters ListType = "encounter_list"
	ListTypePatients   ListType = "patient_list"
)

// ParseListType normalizes the raw value and reports whether it is known.
func ParseListType(raw string) (ListType, bool) {
	lt := ListType(strings.ToLower(strings.TrimSpace(raw)))
	switch lt {
	case ListTypeEncounters, ListTypePatients:
		return lt, true
	default:
		return lt, false
	}
}

// SubjectKind is the type of record a custom attribute or filter applies to.
type SubjectKind string

const (
	SubjectKindEncounter SubjectKind = "encounter"
	SubjectKindPatient   SubjectKind = "patient"
)

// SubjectScope pairs an organization with a subject kind. Attribute lookups,
// annotations and filters are always evaluated inside one subject scope.
type SubjectScope struct {
	OrgID uuid.UUID
	Kind  SubjectKind
}

// PreferenceScope is the tier a persisted list preference belongs to.
type PreferenceScope string

const (
	PreferenceScopeUser         PreferenceScope = "user"
	PreferenceScopeOrganization PreferenceScope = "organization"
)

// Valid reports whether the scope is one of the persisted tiers.
func (s PreferenceScope) Valid() bool {
	return s == PreferenceScopeUser || s == PreferenceScopeOrganization
}

// PreferenceSource reports which tier produced a resolved preference.
type PreferenceSource string

const (
	PreferenceSourceUser         PreferenceSource = "user"
	PreferenceSourceOrganization PreferenceSource = "organization"
	PreferenceSourceDefault      PreferenceSource = "default"
)

// ListPreference is a list view configuration, persisted or computed.
type ListPreference struct {
	ID             uuid.UUID
	Scope          PreferenceScope
	UserID         uuid.UUID
	OrgID          uuid.UUID
	ListType       ListType
	VisibleColumns []string
	DefaultSort    string
	SavedFilters   map[string]any
	ItemsPerPage   int
	Source         PreferenceSource
	Persisted      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CreatedBy      uuid.UUID
	UpdatedBy      uuid.UUID
}

// PreferenceKey identifies one preference row. UserID is only meaningful for
// the user scope.
type PreferenceKey struct {
	Scope    PreferenceScope
	UserID   uuid.UUID
	OrgID    uuid.UUID
	ListType ListType
}

// PreferenceRepository persists list preferences.
type PreferenceRepository interface {
	FindPreference(ctx context.Context, key PreferenceKey) (*ListPreference, error)
	UpsertPreference(ctx context.Context, pref ListPreference) (*ListPreference, bool, error)
	DeletePreference(ctx context.Context, key PreferenceKey) error
}

// Column is one entry of a list type's column catalog.
type Column struct {
	Value    string   `json:"value"`
	Label    string   `json:"label"`
	DataType DataType `json:"data_type,omitempty"`
	IsCustom bool     `json:"is_custom,omitempty"`
}
