package columns

import (
	"strings"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

// IsCustom reports whether a column identifier names a custom attribute. An
// identifier is custom iff it parses as a UUID; everything else, dotted
// relation paths included, is a model field path.
func IsCustom(identifier string) bool {
	_, ok := ParseCustomID(identifier)
	return ok
}

// ParseCustomID parses a custom attribute identifier.
func ParseCustomID(identifier string) (uuid.UUID, bool) {
	if identifier == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(identifier)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// AnnotationName returns the derived field name used for a custom attribute.
func AnnotationName(id uuid.UUID) string {
	return "attr_" + strings.ReplaceAll(id.String(), "-", "_")
}

// NormalizeFieldPath converts dotted relation paths to the double underscore
// form used by the field catalogs.
func NormalizeFieldPath(path string) string {
	return strings.ReplaceAll(strings.TrimSpace(path), ".", "__")
}

// ColumnRef is a column identifier resolved once per request.
type ColumnRef interface {
	Identifier() string
	columnRef()
}

// FixedField references a model field path.
type FixedField struct {
	Path string
}

// Identifier implements ColumnRef.
func (f FixedField) Identifier() string { return f.Path }

func (FixedField) columnRef() {}

// CustomAttribute references a custom attribute that resolved inside the
// request's subject scope.
type CustomAttribute struct {
	Definition types.AttributeDefinition
}

// Identifier implements ColumnRef.
func (c CustomAttribute) Identifier() string { return c.Definition.ID.String() }

func (CustomAttribute) columnRef() {}

// ID returns the attribute id.
func (c CustomAttribute) ID() uuid.UUID { return c.Definition.ID }

// DataType returns the attribute data type.
func (c CustomAttribute) DataType() types.DataType { return c.Definition.DataType }

// IsMulti reports whether the attribute is multi-valued.
func (c CustomAttribute) IsMulti() bool { return c.Definition.IsMulti }

// AnnotationName returns the derived field name of the attribute.
func (c CustomAttribute) AnnotationName() string { return AnnotationName(c.Definition.ID) }
