// Package filters models list filter specifications as a closed set of filter
// kinds and parses them from their stored document form.
package filters

import (
	"sort"

	"github.com/thrivehealth/go-listviews/pkg/types"
)

// Document keys.
const (
	KeyCustomAttributes = "custom_attributes"
	KeyModelFields      = "model_fields"
)

// Operator is a date comparison operator.
type Operator string

const (
	OperatorExact Operator = "exact"
	OperatorGTE   Operator = "gte"
	OperatorLTE   Operator = "lte"
	OperatorRange Operator = "range"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OperatorExact, OperatorGTE, OperatorLTE, OperatorRange:
		return true
	default:
		return false
	}
}

// Filter is one field's filter. The concrete kinds are Exact, Membership,
// DateRange and All.
type Filter interface {
	// Noop reports whether the filter places no restriction on the query.
	Noop() bool
	filter()
}

// Exact matches values equal to Value.
type Exact struct {
	Value any
}

// Noop implements Filter.
func (Exact) Noop() bool { return false }

func (Exact) filter() {}

// Membership matches values in Values. IncludeNull also matches records with
// no value.
type Membership struct {
	Values      []any
	IncludeNull bool
}

// Noop implements Filter. An empty set places no restriction, even with
// IncludeNull set.
func (m Membership) Noop() bool { return len(m.Values) == 0 }

func (Membership) filter() {}

// Strings returns the members formatted as strings.
func (m Membership) Strings() []string {
	out := make([]string, 0, len(m.Values))
	for _, v := range m.Values {
		out = append(out, stringify(v))
	}
	return out
}

// DateRange compares dates. Exact, GTE and LTE use Value; Range uses Start
// and End, either of which may be open.
type DateRange struct {
	Operator    Operator
	Value       *types.Date
	Start       *types.Date
	End         *types.Date
	IncludeNull bool
}

// Noop implements Filter.
func (d DateRange) Noop() bool {
	switch d.Operator {
	case OperatorExact, OperatorGTE, OperatorLTE:
		return d.Value == nil
	case OperatorRange:
		return d.Start == nil && d.End == nil
	default:
		return true
	}
}

func (DateRange) filter() {}

// Lower returns the inclusive lower bound, if any.
func (d DateRange) Lower() *types.Date {
	switch d.Operator {
	case OperatorExact, OperatorGTE:
		return d.Value
	case OperatorRange:
		return d.Start
	default:
		return nil
	}
}

// Upper returns the inclusive upper bound, if any.
func (d DateRange) Upper() *types.Date {
	switch d.Operator {
	case OperatorExact, OperatorLTE:
		return d.Value
	case OperatorRange:
		return d.End
	default:
		return nil
	}
}

// All matches records satisfying every one of Filters. Parse produces it
// when a field is filtered under both its plain and its "_range" key.
type All struct {
	Filters []Filter
}

// Noop implements Filter.
func (a All) Noop() bool {
	for _, f := range a.Filters {
		if f != nil && !f.Noop() {
			return false
		}
	}
	return true
}

func (All) filter() {}

// Combine returns the conjunction of a and b, flattening nested All values.
// A nil side returns the other unchanged.
func Combine(a, b Filter) Filter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	var out []Filter
	for _, f := range []Filter{a, b} {
		if all, ok := f.(All); ok {
			out = append(out, all.Filters...)
			continue
		}
		out = append(out, f)
	}
	return All{Filters: out}
}

// Spec is a parsed filter specification. Keys of CustomAttributes are raw
// attribute identifiers; keys of ModelFields are field paths with any
// "_range" suffix already stripped.
type Spec struct {
	CustomAttributes map[string]Filter
	ModelFields      map[string]Filter
}

// Empty reports whether the spec has no clauses.
func (s Spec) Empty() bool {
	return len(s.CustomAttributes) == 0 && len(s.ModelFields) == 0
}

// CustomAttributeKeys returns the custom attribute keys in sorted order.
func (s Spec) CustomAttributeKeys() []string {
	return sortedKeys(s.CustomAttributes)
}

// ModelFieldKeys returns the model field keys in sorted order.
func (s Spec) ModelFieldKeys() []string {
	return sortedKeys(s.ModelFields)
}

// Document renders the spec back into its stored document form.
func (s Spec) Document() map[string]any {
	doc := map[string]any{}
	if len(s.CustomAttributes) > 0 {
		section := make(map[string]any, len(s.CustomAttributes))
		for key, f := range s.CustomAttributes {
			section[key] = encode(f)
		}
		doc[KeyCustomAttributes] = section
	}
	if len(s.ModelFields) > 0 {
		section := make(map[string]any, len(s.ModelFields))
		for key, f := range s.ModelFields {
			all, ok := f.(All)
			if !ok {
				section[key] = encode(f)
				continue
			}
			// A conjunction is stored back under the plain and range keys.
			for i, sub := range all.Filters {
				switch i {
				case 0:
					section[key] = encode(sub)
				case 1:
					section[key+rangeSuffix] = encode(sub)
				}
			}
		}
		doc[KeyModelFields] = section
	}
	return doc
}

func encode(f Filter) map[string]any {
	switch v := f.(type) {
	case Exact:
		return map[string]any{"value": v.Value}
	case Membership:
		return map[string]any{"values": v.Values, "include_null": v.IncludeNull}
	case DateRange:
		out := map[string]any{"type": "date", "operator": string(v.Operator), "include_null": v.IncludeNull}
		if v.Value != nil {
			out["value"] = v.Value.String()
		}
		if v.Start != nil {
			out["start"] = v.Start.String()
		}
		if v.End != nil {
			out["end"] = v.End.String()
		}
		return out
	default:
		return map[string]any{}
	}
}

func sortedKeys(m map[string]Filter) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
