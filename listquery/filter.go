package listquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/filters"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/subjects"
	"github.com/uptrace/bun"
)

// ApplyFilters restricts the query to records matching every clause of spec.
// Clauses that cannot be compiled are skipped and recorded in the query
// diagnostics; the rest still apply.
func (e *Engine) ApplyFilters(ctx context.Context, q *Query, spec filters.Spec, scope types.SubjectScope) (*Query, error) {
	if err := e.checkScope(q, scope); err != nil {
		return nil, err
	}
	if spec.Empty() {
		e.logger.Debug("no filters provided")
		return q, nil
	}

	var parts []predicate

	customKeys := spec.CustomAttributeKeys()
	if len(customKeys) > 0 {
		refs, diags, err := e.resolver.Resolve(ctx, scope, customKeys, types.ClauseStageFilter)
		if err != nil {
			return nil, err
		}
		q.Diagnostics.Merge(diags)
		resolved := make(map[string]columns.CustomAttribute, len(refs))
		for _, ref := range refs {
			if attr, ok := ref.(columns.CustomAttribute); ok {
				resolved[attr.ID().String()] = attr
			}
		}
		for _, key := range customKeys {
			id, ok := columns.ParseCustomID(key)
			if !ok {
				e.skip(q, types.ClauseStageFilter, key, types.SkipReasonInvalidIdentifier, nil)
				continue
			}
			attr, ok := resolved[id.String()]
			if !ok {
				continue
			}
			if p, ok := e.customPredicate(ctx, q, key, attr, spec.CustomAttributes[key]); ok {
				parts = append(parts, p)
			}
		}
	}

	for _, key := range spec.ModelFieldKeys() {
		field, ok := q.subject.Field(key)
		if !ok {
			e.skip(q, types.ClauseStageFilter, key, types.SkipReasonUnknownField, nil)
			continue
		}
		if p, ok := e.fieldPredicate(ctx, q, key, field, spec.ModelFields[key]); ok {
			parts = append(parts, p)
		}
	}

	for _, p := range parts {
		q.sel = q.sel.Where(p.query, p.args...)
	}
	if len(parts) > 0 {
		e.logger.Info("applied list filters",
			"organization_id", scope.OrgID.String(),
			"subject_kind", string(scope.Kind),
			"clauses", len(parts),
		)
	}
	return q, nil
}

// customPredicate compiles a custom attribute clause into EXISTS predicates
// correlated on (attribute, subject kind, record id). include_null matches
// records without any value row for the attribute.
func (e *Engine) customPredicate(ctx context.Context, q *Query, key string, attr columns.CustomAttribute, f filters.Filter) (predicate, bool) {
	var (
		main        predicate
		includeNull bool
	)
	switch attr.DataType() {
	case types.DataTypeEnum:
		var m filters.Membership
		switch v := f.(type) {
		case filters.Membership:
			m = v
		case filters.Exact:
			m = filters.Membership{Values: []any{v.Value}}
		default:
			e.skip(q, types.ClauseStageFilter, key, types.SkipReasonUnsupportedFilter, map[string]any{
				"data_type": string(attr.DataType()),
			})
			return predicate{}, false
		}
		if m.Noop() {
			e.logger.Debug("empty enum filter values, no-op", "attribute_id", key)
			return predicate{}, false
		}
		sub := e.enumRows(q, attr.ID()).
			ColumnExpr("1").
			Where("cae.value IN (?)", bun.In(m.Strings()))
		main = predicate{query: "EXISTS (?)", args: []any{sub}}
		includeNull = m.IncludeNull

	case types.DataTypeDate:
		switch v := f.(type) {
		case filters.DateRange:
			if v.Noop() {
				return predicate{}, false
			}
			sub := e.valueRows(q, attr.ID()).ColumnExpr("1")
			if lower := v.Lower(); lower != nil {
				sub = sub.Where("cav.value_date >= ?", *lower)
			}
			if upper := v.Upper(); upper != nil {
				sub = sub.Where("cav.value_date <= ?", *upper)
			}
			main = predicate{query: "EXISTS (?)", args: []any{sub}}
			includeNull = v.IncludeNull
		case filters.Exact, filters.Membership:
			dates, ok := e.coerceDates(q, key, f)
			if !ok {
				return predicate{}, false
			}
			if len(dates) == 0 {
				return predicate{}, false
			}
			sub := e.valueRows(q, attr.ID()).
				ColumnExpr("1").
				Where("cav.value_date IN (?)", bun.In(dates))
			main = predicate{query: "EXISTS (?)", args: []any{sub}}
			if m, isMembership := f.(filters.Membership); isMembership {
				includeNull = m.IncludeNull
			}
		default:
			e.skip(q, types.ClauseStageFilter, key, types.SkipReasonUnsupportedFilter, map[string]any{
				"data_type": string(attr.DataType()),
			})
			return predicate{}, false
		}

	default:
		e.skip(q, types.ClauseStageFilter, key, types.SkipReasonUnsupportedFilter, map[string]any{
			"data_type": string(attr.DataType()),
		})
		return predicate{}, false
	}

	if includeNull {
		anyValue := e.valueRows(q, attr.ID()).ColumnExpr("1")
		main = main.or(predicate{query: "NOT EXISTS (?)", args: []any{anyValue}})
	}
	e.logger.Debug("built custom attribute filter",
		"attribute_id", key,
		"attribute_name", attr.Definition.Name,
		"data_type", string(attr.DataType()),
	)
	return main, true
}

// fieldPredicate compiles a model field clause against the subject's field
// catalog.
func (e *Engine) fieldPredicate(ctx context.Context, q *Query, key string, field subjects.Field, f filters.Filter) (predicate, bool) {
	expr, exprArgs := field.Expr()
	withExpr := func(tail string, args ...any) predicate {
		return predicate{query: expr + tail, args: append(append([]any{}, exprArgs...), args...)}
	}

	var (
		main        predicate
		includeNull bool
	)
	switch v := f.(type) {
	case filters.All:
		var clauses []predicate
		for _, sub := range v.Filters {
			if p, ok := e.fieldPredicate(ctx, q, key, field, sub); ok {
				clauses = append(clauses, p)
			}
		}
		if len(clauses) == 0 {
			return predicate{}, false
		}
		return and(clauses...), true

	case filters.Exact:
		if field.Type == subjects.FieldTimestamp {
			d, ok, err := types.CoerceDate(v.Value)
			if err != nil || !ok {
				e.skip(q, types.ClauseStageFilter, key, types.SkipReasonInvalidDate, map[string]any{"value": fmt.Sprint(v.Value)})
				return predicate{}, false
			}
			main = and(withExpr(" >= ?", d.Time()), withExpr(" < ?", d.Time().AddDate(0, 0, 1)))
			break
		}
		value, err := coerceFieldValue(field.Type, v.Value)
		if err != nil {
			e.skip(q, types.ClauseStageFilter, key, reasonFor(field.Type), map[string]any{"value": fmt.Sprint(v.Value)})
			return predicate{}, false
		}
		if value == nil {
			main = withExpr(" IS NULL")
			break
		}
		main = withExpr(" = ?", value)

	case filters.Membership:
		if v.Noop() {
			e.logger.Debug("empty enum filter values, no-op", "field", key)
			return predicate{}, false
		}
		if field.Type == subjects.FieldTimestamp {
			e.skip(q, types.ClauseStageFilter, key, types.SkipReasonUnsupportedFilter, nil)
			return predicate{}, false
		}
		values := make([]any, 0, len(v.Values))
		for _, raw := range v.Values {
			value, err := coerceFieldValue(field.Type, raw)
			if err != nil {
				e.skip(q, types.ClauseStageFilter, key, reasonFor(field.Type), map[string]any{"values": strings.Join(v.Strings(), ",")})
				return predicate{}, false
			}
			if value != nil {
				values = append(values, value)
			}
		}
		if len(values) == 0 {
			return predicate{}, false
		}
		main = withExpr(" IN (?)", bun.In(values))
		includeNull = v.IncludeNull

	case filters.DateRange:
		if field.Type != subjects.FieldDate && field.Type != subjects.FieldTimestamp {
			e.skip(q, types.ClauseStageFilter, key, types.SkipReasonUnsupportedFilter, map[string]any{
				"field_type": string(field.Type),
			})
			return predicate{}, false
		}
		if v.Noop() {
			return predicate{}, false
		}
		var bounds []predicate
		if lower := v.Lower(); lower != nil {
			if field.Type == subjects.FieldTimestamp {
				bounds = append(bounds, withExpr(" >= ?", lower.Time()))
			} else {
				bounds = append(bounds, withExpr(" >= ?", *lower))
			}
		}
		if upper := v.Upper(); upper != nil {
			if field.Type == subjects.FieldTimestamp {
				bounds = append(bounds, withExpr(" < ?", upper.Time().AddDate(0, 0, 1)))
			} else {
				bounds = append(bounds, withExpr(" <= ?", *upper))
			}
		}
		main = and(bounds...)
		includeNull = v.IncludeNull

	default:
		e.skip(q, types.ClauseStageFilter, key, types.SkipReasonUnsupportedFilter, nil)
		return predicate{}, false
	}

	if includeNull {
		main = main.or(withExpr(" IS NULL"))
	}
	return main, true
}

func (e *Engine) coerceDates(q *Query, key string, f filters.Filter) ([]types.Date, bool) {
	var raw []any
	switch v := f.(type) {
	case filters.Exact:
		raw = []any{v.Value}
	case filters.Membership:
		raw = v.Values
	}
	out := make([]types.Date, 0, len(raw))
	for _, value := range raw {
		d, ok, err := types.CoerceDate(value)
		if err != nil {
			e.skip(q, types.ClauseStageFilter, key, types.SkipReasonInvalidDate, map[string]any{"value": fmt.Sprint(value)})
			return nil, false
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, true
}

// coerceFieldValue converts an untyped filter value to the field's type. A
// nil result means the value is null.
func coerceFieldValue(ft subjects.FieldType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch ft {
	case subjects.FieldBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(v))
		case float64:
			return v != 0, nil
		case int:
			return v != 0, nil
		default:
			return nil, fmt.Errorf("listquery: cannot use %T as bool", raw)
		}
	case subjects.FieldUUID:
		switch v := raw.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			return uuid.Parse(strings.TrimSpace(v))
		default:
			return nil, fmt.Errorf("listquery: cannot use %T as uuid", raw)
		}
	case subjects.FieldDate:
		d, ok, err := types.CoerceDate(raw)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return d, nil
	case subjects.FieldTimestamp:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		default:
			return nil, fmt.Errorf("listquery: cannot use %T as timestamp", raw)
		}
	default:
		switch v := raw.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		case map[string]any, []any:
			return nil, fmt.Errorf("listquery: cannot use %T as text", raw)
		default:
			return fmt.Sprint(v), nil
		}
	}
}

func reasonFor(ft subjects.FieldType) string {
	if ft == subjects.FieldDate || ft == subjects.FieldTimestamp {
		return types.SkipReasonInvalidDate
	}
	return types.SkipReasonUnsupportedFilter
}
