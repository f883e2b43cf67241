package types

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DataType is the value type of a custom attribute.
type DataType string

const (
	DataTypeDate DataType = "DATE"
	DataTypeEnum DataType = "ENUM"
)

// ParseDataType normalizes the raw value and reports whether it is supported.
func ParseDataType(raw string) (DataType, bool) {
	dt := DataType(strings.ToUpper(strings.TrimSpace(raw)))
	switch dt {
	case DataTypeDate, DataTypeEnum:
		return dt, true
	default:
		return dt, false
	}
}

// EnumOption is an allowed value of an ENUM attribute.
type EnumOption struct {
	ID          uuid.UUID `json:"id"`
	AttributeID uuid.UUID `json:"attribute_id"`
	Label       string    `json:"label"`
	Value       string    `json:"value"`
	Position    int       `json:"position"`
}

// AttributeDefinition describes an organization-defined custom attribute.
type AttributeDefinition struct {
	ID          uuid.UUID    `json:"id"`
	OrgID       uuid.UUID    `json:"organization_id"`
	SubjectKind SubjectKind  `json:"subject_kind"`
	Name        string       `json:"name"`
	DataType    DataType     `json:"data_type"`
	IsMulti     bool         `json:"is_multi"`
	Options     []EnumOption `json:"options,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Scope returns the subject scope the attribute belongs to.
func (a AttributeDefinition) Scope() SubjectScope {
	return SubjectScope{OrgID: a.OrgID, Kind: a.SubjectKind}
}

// Option returns the enum option with the given id.
func (a AttributeDefinition) Option(id uuid.UUID) (EnumOption, bool) {
	for _, opt := range a.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return EnumOption{}, false
}

// OptionByValue returns the enum option with the given machine value.
func (a AttributeDefinition) OptionByValue(value string) (EnumOption, bool) {
	for _, opt := range a.Options {
		if opt.Value == value {
			return opt, true
		}
	}
	return EnumOption{}, false
}

// AttributeInput defines a new custom attribute.
type AttributeInput struct {
	Scope    SubjectScope
	Name     string
	DataType DataType
	IsMulti  bool
	Options  []EnumOptionInput
}

// EnumOptionInput is an enum option supplied on attribute creation.
type EnumOptionInput struct {
	Label string
	Value string
}

// AttributeValue is a typed value attached to one subject record. Exactly one
// of Date and Enum is set.
type AttributeValue struct {
	ID          uuid.UUID   `json:"id"`
	AttributeID uuid.UUID   `json:"attribute_id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   uuid.UUID   `json:"subject_id"`
	Date        *Date       `json:"value_date,omitempty"`
	Enum        *EnumOption `json:"value_enum,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// AttributeValueInput carries one value for SetValues. Date values go in Date,
// enum values reference an option by id or by machine value.
type AttributeValueInput struct {
	Date       *Date
	EnumOption uuid.UUID
	EnumValue  string
}

// AttributeRegistry stores custom attribute definitions and values.
type AttributeRegistry interface {
	ListAttributes(ctx context.Context, scope SubjectScope) ([]AttributeDefinition, error)
	GetAttribute(ctx context.Context, scope SubjectScope, id uuid.UUID) (*AttributeDefinition, error)
	LookupAttributes(ctx context.Context, scope SubjectScope, ids []uuid.UUID) (map[uuid.UUID]AttributeDefinition, error)
	CreateAttribute(ctx context.Context, input AttributeInput) (*AttributeDefinition, error)
	AddEnumOption(ctx context.Context, scope SubjectScope, attributeID uuid.UUID, option EnumOptionInput) (*EnumOption, error)
	SetValues(ctx context.Context, scope SubjectScope, attributeID, subjectID uuid.UUID, values []AttributeValueInput) ([]AttributeValue, error)
	ListValues(ctx context.Context, scope SubjectScope, subjectID uuid.UUID) ([]AttributeValue, error)
}

// AttributeLookup is the read-only slice of the registry used while building
// queries.
type AttributeLookup interface {
	ListAttributes(ctx context.Context, scope SubjectScope) ([]AttributeDefinition, error)
	LookupAttributes(ctx context.Context, scope SubjectScope, ids []uuid.UUID) (map[uuid.UUID]AttributeDefinition, error)
}
