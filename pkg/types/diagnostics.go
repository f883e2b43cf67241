package types

// ClauseStage names the query-building step that skipped a clause.
type ClauseStage string

const (
	ClauseStageParse    ClauseStage = "parse"
	ClauseStageAnnotate ClauseStage = "annotate"
	ClauseStageFilter   ClauseStage = "filter"
	ClauseStageSort     ClauseStage = "sort"
)

// Skip reasons reported in diagnostics.
const (
	SkipReasonInvalidIdentifier = "invalid_identifier"
	SkipReasonUnknownAttribute  = "unknown_attribute"
	SkipReasonUnknownField      = "unknown_field"
	SkipReasonUnsupportedFilter = "unsupported_filter"
	SkipReasonInvalidDate       = "invalid_date"
	SkipReasonUnknownOperator   = "unknown_operator"
	SkipReasonInvalidSort       = "invalid_sort"
)

// SkippedClause records one clause that was dropped while building a query.
type SkippedClause struct {
	Stage  ClauseStage    `json:"stage"`
	Field  string         `json:"field"`
	Reason string         `json:"reason"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Diagnostics accumulates degraded-input reports returned alongside built
// queries so callers can inspect partial-filter situations.
type Diagnostics struct {
	Skipped []SkippedClause `json:"skipped,omitempty"`
}

// Skip appends a skipped clause.
func (d *Diagnostics) Skip(stage ClauseStage, field, reason string, detail map[string]any) {
	d.Skipped = append(d.Skipped, SkippedClause{
		Stage:  stage,
		Field:  field,
		Reason: reason,
		Detail: detail,
	})
}

// Merge appends every clause from other.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Skipped = append(d.Skipped, other.Skipped...)
}

// Empty reports whether nothing was skipped.
func (d Diagnostics) Empty() bool {
	return len(d.Skipped) == 0
}

// Fields returns the field names of the skipped clauses for one stage.
func (d Diagnostics) Fields(stage ClauseStage) []string {
	var out []string
	for _, clause := range d.Skipped {
		if clause.Stage == stage {
			out = append(out, clause.Field)
		}
	}
	return out
}
