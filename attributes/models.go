package attributes

import (
	"time"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// Attribute models rows in custom_attributes.
type Attribute struct {
	bun.BaseModel `bun:"table:custom_attributes"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	OrgID       uuid.UUID `bun:"organization_id,type:uuid,notnull"`
	SubjectKind string    `bun:"subject_kind,notnull"`
	Name        string    `bun:"name,notnull"`
	DataType    string    `bun:"data_type,notnull"`
	IsMulti     bool      `bun:"is_multi,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

// EnumOption models rows in custom_attribute_enums.
type EnumOption struct {
	bun.BaseModel `bun:"table:custom_attribute_enums"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	AttributeID uuid.UUID `bun:"attribute_id,type:uuid,notnull"`
	Label       string    `bun:"label,notnull"`
	Value       string    `bun:"value,notnull"`
	Position    int       `bun:"position,notnull"`
}

// Value models rows in custom_attribute_values. Exactly one of ValueDate and
// ValueEnumID is set.
type Value struct {
	bun.BaseModel `bun:"table:custom_attribute_values"`

	ID          uuid.UUID   `bun:"id,pk,type:uuid"`
	AttributeID uuid.UUID   `bun:"attribute_id,type:uuid,notnull"`
	SubjectKind string      `bun:"subject_kind,notnull"`
	SubjectID   uuid.UUID   `bun:"subject_id,type:uuid,notnull"`
	ValueDate   *types.Date `bun:"value_date,type:date"`
	ValueEnumID uuid.UUID   `bun:"value_enum_id,type:uuid,nullzero"`
	CreatedAt   time.Time   `bun:"created_at,notnull"`
	UpdatedAt   time.Time   `bun:"updated_at,notnull"`
}
