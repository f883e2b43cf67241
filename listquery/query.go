// Package listquery builds list queries over subject records: it annotates
// custom attribute values, compiles filter specifications into correlated
// EXISTS predicates, applies sorts and fetches pages of rows.
package listquery

import (
	"errors"
	"strings"
	"sync"

	"github.com/goliatone/go-masker"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/subjects"
	"github.com/uptrace/bun"
)

const (
	valuesTable = "custom_attribute_values"
	enumsTable  = "custom_attribute_enums"
)

// Config wires the engine.
type Config struct {
	DB         bun.IDB
	Attributes types.AttributeLookup
	Logger     types.Logger
	Masker     *masker.Masker
}

// Engine builds list queries.
type Engine struct {
	db       bun.IDB
	resolver *columns.Resolver
	logger   types.Logger
	masker   *masker.Masker
}

// NewEngine validates the config and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.DB == nil {
		return nil, errors.New("listquery: db required")
	}
	if cfg.Attributes == nil {
		return nil, types.ErrMissingAttributeRegistry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	mask := cfg.Masker
	if mask == nil {
		mask = defaultMasker()
	}
	return &Engine{
		db:       cfg.DB,
		resolver: columns.NewResolver(cfg.Attributes, logger),
		logger:   logger,
		masker:   mask,
	}, nil
}

// Query is a list query over one subject scope. It tracks the custom
// attribute annotations already attached and the clauses skipped while
// building it.
type Query struct {
	scope       types.SubjectScope
	subject     *subjects.Subject
	sel         *bun.SelectQuery
	annotations map[string]types.DataType
	Diagnostics types.Diagnostics
}

// NewQuery returns the base query for a subject scope: every record of the
// organization with its joined relation fields.
func (e *Engine) NewQuery(scope types.SubjectScope) (*Query, error) {
	if scope.OrgID == uuid.Nil {
		return nil, types.ValidationError(types.ErrOrganizationRequired, types.TextCodeOrganizationRequired, nil)
	}
	subject, ok := subjects.Lookup(scope.Kind)
	if !ok {
		return nil, types.ValidationError(types.ErrInvalidSubjectKind, types.TextCodeInvalidListType, map[string]any{
			"subject_kind": string(scope.Kind),
		})
	}
	return &Query{
		scope:       scope,
		subject:     subject,
		sel:         subject.BaseQuery(e.db, scope.OrgID),
		annotations: map[string]types.DataType{},
	}, nil
}

// Scope returns the subject scope of the query.
func (q *Query) Scope() types.SubjectScope { return q.scope }

// Subject returns the subject descriptor.
func (q *Query) Subject() *subjects.Subject { return q.subject }

// Select exposes the underlying bun query.
func (q *Query) Select() *bun.SelectQuery { return q.sel }

// Annotated reports whether the derived field name is already attached.
func (q *Query) Annotated(name string) bool {
	_, ok := q.annotations[name]
	return ok
}

// Annotations returns the derived field names and their data types.
func (q *Query) Annotations() map[string]types.DataType {
	out := make(map[string]types.DataType, len(q.annotations))
	for k, v := range q.annotations {
		out[k] = v
	}
	return out
}

// String renders the SQL of the query.
func (q *Query) String() string {
	return q.sel.String()
}

func (e *Engine) checkScope(q *Query, scope types.SubjectScope) error {
	if q == nil {
		return errors.New("listquery: query required")
	}
	if q.scope != scope {
		return types.ValidationError(types.ErrSubjectMismatch, types.TextCodeInvalidScope, map[string]any{
			"query_subject_kind": string(q.scope.Kind),
			"subject_kind":       string(scope.Kind),
		})
	}
	return nil
}

func (e *Engine) skip(q *Query, stage types.ClauseStage, field, reason string, detail map[string]any) {
	detail = e.mask(detail)
	fields := []any{"stage", string(stage), "field", field, "reason", reason, "organization_id", q.scope.OrgID.String()}
	for k, v := range detail {
		fields = append(fields, k, v)
	}
	e.logger.Warn("list query clause skipped", fields...)
	q.Diagnostics.Skip(stage, field, reason, detail)
}

func (e *Engine) mask(detail map[string]any) map[string]any {
	if len(detail) == 0 || e.masker == nil {
		return detail
	}
	masked, err := e.masker.Mask(detail)
	if err != nil {
		return map[string]any{}
	}
	if out, ok := masked.(map[string]any); ok {
		return out
	}
	return map[string]any{}
}

var defaultMaskerOnce sync.Once

// defaultMasker returns the shared masker with filter value fields
// registered.
func defaultMasker() *masker.Masker {
	defaultMaskerOnce.Do(func() {
		if masker.Default == nil {
			return
		}
		for _, field := range []string{"value", "values", "start", "end"} {
			masker.Default.RegisterMaskField(field, "filled4")
		}
	})
	return masker.Default
}

// predicate is a WHERE fragment with its arguments.
type predicate struct {
	query string
	args  []any
}

func (p predicate) or(other predicate) predicate {
	return predicate{
		query: "(" + p.query + " OR " + other.query + ")",
		args:  append(append([]any{}, p.args...), other.args...),
	}
}

func and(parts ...predicate) predicate {
	queries := make([]string, 0, len(parts))
	var args []any
	for _, p := range parts {
		queries = append(queries, p.query)
		args = append(args, p.args...)
	}
	return predicate{query: "(" + strings.Join(queries, " AND ") + ")", args: args}
}

// valueRows selects the value rows of one attribute for the outer record.
func (e *Engine) valueRows(q *Query, attributeID uuid.UUID) *bun.SelectQuery {
	return e.db.NewSelect().
		TableExpr("? AS cav", bun.Ident(valuesTable)).
		Where("cav.attribute_id = ?", attributeID).
		Where("cav.subject_kind = ?", string(q.scope.Kind)).
		Where("cav.subject_id = ?", q.subject.IDColumn())
}

// enumRows is valueRows joined with the enum options.
func (e *Engine) enumRows(q *Query, attributeID uuid.UUID) *bun.SelectQuery {
	return e.valueRows(q, attributeID).
		Join("JOIN ? AS cae ON cae.id = cav.value_enum_id", bun.Ident(enumsTable))
}
