package filters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/thrivehealth/go-listviews/pkg/types"
)

const rangeSuffix = "_range"

// Parse converts a filter document into a Spec. Malformed clauses are
// dropped and reported in the returned diagnostics; the remaining clauses
// are still returned.
func Parse(doc map[string]any) (Spec, types.Diagnostics) {
	var diags types.Diagnostics
	spec := Spec{
		CustomAttributes: map[string]Filter{},
		ModelFields:      map[string]Filter{},
	}
	if len(doc) == 0 {
		return spec, diags
	}

	if section, ok := asSection(doc[KeyCustomAttributes], KeyCustomAttributes, &diags); ok {
		for _, key := range sectionKeys(section) {
			raw := section[key]
			cfg, ok := raw.(map[string]any)
			if !ok {
				diags.Skip(types.ClauseStageParse, key, types.SkipReasonUnsupportedFilter, map[string]any{
					"section": KeyCustomAttributes,
					"shape":   fmt.Sprintf("%T", raw),
				})
				continue
			}
			if f, ok := parseConfig(key, cfg, &diags); ok {
				spec.CustomAttributes[key] = f
			}
		}
	}

	// Keys are visited in sorted order, so "created_at" is read before
	// "created_at_range" and both clauses are kept as a conjunction.
	if section, ok := asSection(doc[KeyModelFields], KeyModelFields, &diags); ok {
		for _, key := range sectionKeys(section) {
			raw := section[key]
			field := strings.TrimSuffix(key, rangeSuffix)
			if field == "" {
				diags.Skip(types.ClauseStageParse, key, types.SkipReasonInvalidIdentifier, nil)
				continue
			}
			var f Filter
			switch v := raw.(type) {
			case map[string]any:
				parsed, ok := parseConfig(key, v, &diags)
				if !ok {
					continue
				}
				f = parsed
			case []any:
				f = Membership{Values: v}
			case []string:
				f = Membership{Values: toAnySlice(v)}
			default:
				f = Exact{Value: raw}
			}
			spec.ModelFields[field] = Combine(spec.ModelFields[field], f)
		}
	}
	return spec, diags
}

// ParseJSON decodes a JSON filter document and parses it.
func ParseJSON(data []byte) (Spec, types.Diagnostics, error) {
	if len(data) == 0 {
		spec, diags := Parse(nil)
		return spec, diags, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Spec{}, types.Diagnostics{}, err
	}
	spec, diags := Parse(doc)
	return spec, diags, nil
}

func sectionKeys(section map[string]any) []string {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func asSection(raw any, name string, diags *types.Diagnostics) (map[string]any, bool) {
	if raw == nil {
		return nil, false
	}
	section, ok := raw.(map[string]any)
	if !ok {
		diags.Skip(types.ClauseStageParse, name, types.SkipReasonUnsupportedFilter, map[string]any{
			"shape": fmt.Sprintf("%T", raw),
		})
		return nil, false
	}
	return section, true
}

// parseConfig detects the filter kind of a dict config. Date configs win
// over enum configs, which win over exact configs.
func parseConfig(key string, cfg map[string]any, diags *types.Diagnostics) (Filter, bool) {
	kind, _ := cfg["type"].(string)
	_, hasOperator := cfg["operator"]
	_, hasValues := cfg["values"]
	_, hasValue := cfg["value"]
	_, hasStart := cfg["start"]
	_, hasEnd := cfg["end"]

	switch {
	case kind == "date" || hasOperator || hasStart || hasEnd:
		return parseDate(key, cfg, diags)
	case kind == "enum" || hasValues:
		values, ok := asList(cfg["values"])
		if !ok {
			diags.Skip(types.ClauseStageParse, key, types.SkipReasonUnsupportedFilter, map[string]any{
				"shape": fmt.Sprintf("%T", cfg["values"]),
			})
			return nil, false
		}
		return Membership{Values: values, IncludeNull: asBool(cfg["include_null"])}, true
	case hasValue:
		return Exact{Value: cfg["value"]}, true
	default:
		diags.Skip(types.ClauseStageParse, key, types.SkipReasonUnsupportedFilter, nil)
		return nil, false
	}
}

func parseDate(key string, cfg map[string]any, diags *types.Diagnostics) (Filter, bool) {
	op := OperatorRange
	if raw, ok := cfg["operator"]; ok && raw != nil {
		op = Operator(strings.ToLower(strings.TrimSpace(fmt.Sprint(raw))))
	}
	if !op.Valid() {
		diags.Skip(types.ClauseStageParse, key, types.SkipReasonUnknownOperator, map[string]any{
			"operator": string(op),
		})
		return nil, false
	}
	out := DateRange{Operator: op, IncludeNull: asBool(cfg["include_null"])}
	var err error
	switch op {
	case OperatorRange:
		if out.Start, err = optionalDate(cfg["start"]); err == nil {
			out.End, err = optionalDate(cfg["end"])
		}
	default:
		out.Value, err = optionalDate(cfg["value"])
	}
	if err != nil {
		diags.Skip(types.ClauseStageParse, key, types.SkipReasonInvalidDate, map[string]any{
			"error": err.Error(),
		})
		return nil, false
	}
	return out, true
}

func optionalDate(raw any) (*types.Date, error) {
	d, ok, err := types.CoerceDate(raw)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

func asList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, true
	case []any:
		return v, true
	case []string:
		return toAnySlice(v), true
	default:
		return nil, false
	}
}

func asBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
