package listquery

import (
	"context"

	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// Annotate attaches a derived field for every custom attribute identifier in
// visibleColumns. Fixed columns pass through. Unknown attributes are skipped
// and recorded in the query diagnostics. Annotating an attribute twice is a
// no-op.
func (e *Engine) Annotate(ctx context.Context, q *Query, visibleColumns []string, scope types.SubjectScope) (*Query, error) {
	if err := e.checkScope(q, scope); err != nil {
		return nil, err
	}
	var pending []string
	for _, col := range visibleColumns {
		id, ok := columns.ParseCustomID(col)
		if !ok || q.Annotated(columns.AnnotationName(id)) {
			continue
		}
		pending = append(pending, col)
	}
	if len(pending) == 0 {
		e.logger.Debug("no custom attributes to annotate")
		return q, nil
	}

	refs, diags, err := e.resolver.Resolve(ctx, scope, pending, types.ClauseStageAnnotate)
	if err != nil {
		return nil, err
	}
	q.Diagnostics.Merge(diags)

	added := 0
	for _, ref := range refs {
		attr, ok := ref.(columns.CustomAttribute)
		if !ok {
			continue
		}
		if e.annotate(q, attr) {
			added++
		}
	}
	if added > 0 {
		e.logger.Info("annotated list query with custom attributes",
			"organization_id", scope.OrgID.String(),
			"subject_kind", string(scope.Kind),
			"annotations", added,
		)
	}
	return q, nil
}

// annotate attaches one attribute and reports whether a derived field was
// added. Multi-valued attributes have no scalar value and are left out.
func (e *Engine) annotate(q *Query, attr columns.CustomAttribute) bool {
	name := attr.AnnotationName()
	if q.Annotated(name) {
		return false
	}
	if attr.IsMulti() {
		e.logger.Debug("multi-valued custom attribute not annotated",
			"attribute_id", attr.ID().String(),
		)
		return false
	}

	var sub *bun.SelectQuery
	switch attr.DataType() {
	case types.DataTypeDate:
		sub = e.valueRows(q, attr.ID()).
			ColumnExpr("cav.value_date").
			OrderExpr("cav.value_date ASC").
			Limit(1)
	case types.DataTypeEnum:
		sub = e.enumRows(q, attr.ID()).
			ColumnExpr("cae.label").
			OrderExpr("cae.position ASC").
			OrderExpr("cae.label ASC").
			Limit(1)
	default:
		e.logger.Warn("unsupported custom attribute data type",
			"attribute_id", attr.ID().String(),
			"data_type", string(attr.DataType()),
		)
		return false
	}

	q.sel = q.sel.ColumnExpr("(?) AS ?", sub, bun.Ident(name))
	q.annotations[name] = attr.DataType()
	e.logger.Debug("added custom attribute annotation",
		"attribute_id", attr.ID().String(),
		"attribute_name", attr.Definition.Name,
		"annotation", name,
	)
	return true
}
