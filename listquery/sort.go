package listquery

import (
	"context"
	"strings"

	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// ApplySort orders the query by sortField. A leading "-" sorts descending.
// Single-valued custom attributes sort by their derived field, multi-valued
// ENUM attributes by their smallest label. Unknown fields are skipped and
// recorded in the diagnostics.
func (e *Engine) ApplySort(ctx context.Context, q *Query, sortField string, scope types.SubjectScope) (*Query, error) {
	if err := e.checkScope(q, scope); err != nil {
		return nil, err
	}
	sortField = strings.TrimSpace(sortField)
	if sortField == "" {
		return q, nil
	}
	descending := strings.HasPrefix(sortField, "-")
	field := strings.TrimPrefix(sortField, "-")
	dir := "ASC"
	if descending {
		dir = "DESC"
	}

	if columns.IsCustom(field) {
		refs, diags, err := e.resolver.Resolve(ctx, scope, []string{field}, types.ClauseStageSort)
		if err != nil {
			return nil, err
		}
		q.Diagnostics.Merge(diags)
		if len(refs) == 0 {
			return q, nil
		}
		attr := refs[0].(columns.CustomAttribute)
		e.logger.Debug("applying custom attribute sort",
			"sort_field", sortField,
			"attribute_id", attr.ID().String(),
		)
		switch {
		case !attr.IsMulti():
			e.annotate(q, attr)
			if !q.Annotated(attr.AnnotationName()) {
				e.skip(q, types.ClauseStageSort, sortField, types.SkipReasonInvalidSort, map[string]any{
					"data_type": string(attr.DataType()),
				})
				return q, nil
			}
			q.sel = q.sel.OrderExpr("? "+dir, bun.Ident(attr.AnnotationName()))
		case attr.DataType() == types.DataTypeEnum:
			sub := e.enumRows(q, attr.ID()).ColumnExpr("MIN(cae.label)")
			q.sel = q.sel.OrderExpr("(?) "+dir, sub)
		default:
			sub := e.valueRows(q, attr.ID()).ColumnExpr("MIN(cav.value_date)")
			q.sel = q.sel.OrderExpr("(?) "+dir, sub)
		}
		return q, nil
	}

	f, ok := q.subject.Field(field)
	if !ok {
		e.skip(q, types.ClauseStageSort, sortField, types.SkipReasonUnknownField, nil)
		return q, nil
	}
	expr, args := f.Expr()
	q.sel = q.sel.OrderExpr(expr+" "+dir, args...)
	return q, nil
}
