package columns

import (
	"github.com/thrivehealth/go-listviews/pkg/types"
)

// ListDefinition is the fixed catalog of one list type.
type ListDefinition struct {
	ListType       types.ListType
	SubjectKind    types.SubjectKind
	Columns        []types.Column
	DefaultColumns []string
	DefaultSort    string
	ItemsPerPage   int
}

// Defaults returns an unsaved preference built from the hardcoded defaults.
func (d ListDefinition) Defaults() types.ListPreference {
	return types.ListPreference{
		ListType:       d.ListType,
		VisibleColumns: append([]string(nil), d.DefaultColumns...),
		DefaultSort:    d.DefaultSort,
		SavedFilters:   map[string]any{},
		ItemsPerPage:   d.ItemsPerPage,
		Source:         types.PreferenceSourceDefault,
	}
}

// HasColumn reports whether value is one of the fixed columns.
func (d ListDefinition) HasColumn(value string) bool {
	for _, col := range d.Columns {
		if col.Value == value {
			return true
		}
	}
	return false
}

var catalog = map[types.ListType]ListDefinition{
	types.ListTypeEncounters: {
		ListType:    types.ListTypeEncounters,
		SubjectKind: types.SubjectKindEncounter,
		Columns: []types.Column{
			{Value: "patient__first_name", Label: "Patient Name"},
			{Value: "patient__email", Label: "Email"},
			{Value: "patient__date_of_birth", Label: "Date of Birth"},
			{Value: "active", Label: "Active/Archived"},
			{Value: "created_at", Label: "Created"},
			{Value: "updated_at", Label: "Last Updated"},
		},
		DefaultColumns: []string{
			"patient__first_name",
			"patient__email",
			"active",
			"created_at",
			"updated_at",
		},
		DefaultSort:  types.DefaultSort,
		ItemsPerPage: types.DefaultItemsPerPage,
	},
	types.ListTypePatients: {
		ListType:    types.ListTypePatients,
		SubjectKind: types.SubjectKindPatient,
		Columns: []types.Column{
			{Value: "first_name", Label: "Name"},
			{Value: "email", Label: "Email"},
			{Value: "date_of_birth", Label: "Date of Birth"},
			{Value: "has_active_encounter", Label: "Active Encounter"},
			{Value: "created_at", Label: "Created"},
			{Value: "updated_at", Label: "Last Updated"},
		},
		DefaultColumns: []string{
			"first_name",
			"email",
			"has_active_encounter",
			"created_at",
			"updated_at",
		},
		DefaultSort:  types.DefaultSort,
		ItemsPerPage: types.DefaultItemsPerPage,
	},
}

// Lookup returns the catalog of a list type.
func Lookup(listType types.ListType) (ListDefinition, bool) {
	def, ok := catalog[listType]
	if !ok {
		return ListDefinition{}, false
	}
	def.Columns = append([]types.Column(nil), def.Columns...)
	def.DefaultColumns = append([]string(nil), def.DefaultColumns...)
	return def, true
}

// Definition is Lookup that returns a rich validation error for unknown list
// types.
func Definition(listType types.ListType) (ListDefinition, error) {
	def, ok := Lookup(listType)
	if !ok {
		return ListDefinition{}, types.ValidationError(types.ErrInvalidListType, types.TextCodeInvalidListType, map[string]any{
			"list_type": string(listType),
		})
	}
	return def, nil
}

// SubjectKindFor returns the subject kind listed by a list type.
func SubjectKindFor(listType types.ListType) (types.SubjectKind, error) {
	def, err := Definition(listType)
	if err != nil {
		return "", err
	}
	return def.SubjectKind, nil
}

// ListTypes returns every registered list type.
func ListTypes() []types.ListType {
	return []types.ListType{types.ListTypeEncounters, types.ListTypePatients}
}
