// Package subjects describes the record kinds list views are built over: their
// tables, the relations joined into list rows, and the whitelist of field
// paths that filters and sorts may reference.
package subjects

import (
	"strings"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// FieldType drives value coercion for filters and row decoding.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldUUID      FieldType = "uuid"
	FieldBool      FieldType = "bool"
	FieldDate      FieldType = "date"
	FieldTimestamp FieldType = "timestamp"
)

// Field is one queryable field path. Column is a qualified "alias.column"
// reference; SQL is a raw expression used for computed fields.
type Field struct {
	Path   string
	Column string
	SQL    string
	Type   FieldType
}

// Expr returns the field's query fragment and its arguments.
func (f Field) Expr() (string, []any) {
	if f.SQL != "" {
		return "(" + f.SQL + ")", nil
	}
	return "?", []any{bun.Ident(f.Column)}
}

// Subject is the query descriptor of one subject kind.
type Subject struct {
	Kind  types.SubjectKind
	Table string
	Alias string
	// Joins are appended verbatim to the base query.
	Joins []string
	// Selected lists field paths selected in addition to the subject's own
	// columns, under their path as the column name.
	Selected []string
	fields   map[string]Field
}

// Field resolves a field path. Dotted relation paths are accepted.
func (s *Subject) Field(path string) (Field, bool) {
	f, ok := s.fields[strings.ReplaceAll(strings.TrimSpace(path), ".", "__")]
	return f, ok
}

// Fields returns the field catalog.
func (s *Subject) Fields() []Field {
	out := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	return out
}

// IDColumn is the qualified primary key column.
func (s *Subject) IDColumn() bun.Ident {
	return bun.Ident(s.Alias + ".id")
}

// OrgColumn is the qualified organization column.
func (s *Subject) OrgColumn() bun.Ident {
	return bun.Ident(s.Alias + ".organization_id")
}

// BaseQuery selects the subject's rows in one organization together with the
// joined relation fields.
func (s *Subject) BaseQuery(db bun.IDB, orgID uuid.UUID) *bun.SelectQuery {
	q := db.NewSelect().
		TableExpr("? AS ?", bun.Ident(s.Table), bun.Ident(s.Alias)).
		ColumnExpr("?.*", bun.Ident(s.Alias))
	for _, join := range s.Joins {
		q = q.Join(join)
	}
	for _, path := range s.Selected {
		f := s.fields[path]
		expr, args := f.Expr()
		q = q.ColumnExpr(expr+" AS ?", append(args, bun.Ident(path))...)
	}
	return q.Where("? = ?", s.OrgColumn(), orgID)
}

func newSubject(kind types.SubjectKind, table, alias string, joins, selected []string, fields ...Field) *Subject {
	s := &Subject{
		Kind:     kind,
		Table:    table,
		Alias:    alias,
		Joins:    joins,
		Selected: selected,
		fields:   make(map[string]Field, len(fields)),
	}
	for _, f := range fields {
		s.fields[f.Path] = f
	}
	return s
}

var registry = map[types.SubjectKind]*Subject{
	types.SubjectKindEncounter: newSubject(
		types.SubjectKindEncounter, "encounters", "encounter",
		[]string{`LEFT JOIN "patients" AS "patient" ON "patient"."id" = "encounter"."patient_id"`},
		[]string{"patient__first_name", "patient__last_name", "patient__email", "patient__date_of_birth"},
		Field{Path: "id", Column: "encounter.id", Type: FieldUUID},
		Field{Path: "patient_id", Column: "encounter.patient_id", Type: FieldUUID},
		Field{Path: "active", Column: "encounter.active", Type: FieldBool},
		Field{Path: "created_at", Column: "encounter.created_at", Type: FieldTimestamp},
		Field{Path: "updated_at", Column: "encounter.updated_at", Type: FieldTimestamp},
		Field{Path: "patient__first_name", Column: "patient.first_name", Type: FieldText},
		Field{Path: "patient__last_name", Column: "patient.last_name", Type: FieldText},
		Field{Path: "patient__email", Column: "patient.email", Type: FieldText},
		Field{Path: "patient__date_of_birth", Column: "patient.date_of_birth", Type: FieldDate},
	),
	types.SubjectKindPatient: newSubject(
		types.SubjectKindPatient, "patients", "patient",
		nil,
		[]string{"has_active_encounter"},
		Field{Path: "id", Column: "patient.id", Type: FieldUUID},
		Field{Path: "first_name", Column: "patient.first_name", Type: FieldText},
		Field{Path: "last_name", Column: "patient.last_name", Type: FieldText},
		Field{Path: "email", Column: "patient.email", Type: FieldText},
		Field{Path: "date_of_birth", Column: "patient.date_of_birth", Type: FieldDate},
		Field{Path: "created_at", Column: "patient.created_at", Type: FieldTimestamp},
		Field{Path: "updated_at", Column: "patient.updated_at", Type: FieldTimestamp},
		Field{
			Path: "has_active_encounter",
			SQL:  `EXISTS (SELECT 1 FROM "encounters" AS "active_encounter" WHERE "active_encounter"."patient_id" = "patient"."id" AND "active_encounter"."active")`,
			Type: FieldBool,
		},
	),
}

// Lookup returns the descriptor of a subject kind.
func Lookup(kind types.SubjectKind) (*Subject, bool) {
	s, ok := registry[kind]
	return s, ok
}

// Kinds returns every registered subject kind.
func Kinds() []types.SubjectKind {
	return []types.SubjectKind{types.SubjectKindEncounter, types.SubjectKindPatient}
}
