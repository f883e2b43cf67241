package subjects

import (
	"time"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// Patient models rows in patients.
type Patient struct {
	bun.BaseModel `bun:"table:patients,alias:patient"`

	ID          uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	OrgID       uuid.UUID   `bun:"organization_id,type:uuid,notnull" json:"organization_id"`
	FirstName   string      `bun:"first_name,notnull" json:"first_name"`
	LastName    string      `bun:"last_name,notnull" json:"last_name"`
	Email       string      `bun:"email,notnull" json:"email"`
	DateOfBirth *types.Date `bun:"date_of_birth,type:date" json:"date_of_birth,omitempty"`
	CreatedAt   time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// Encounter models rows in encounters.
type Encounter struct {
	bun.BaseModel `bun:"table:encounters,alias:encounter"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OrgID     uuid.UUID `bun:"organization_id,type:uuid,notnull" json:"organization_id"`
	PatientID uuid.UUID `bun:"patient_id,type:uuid,notnull" json:"patient_id"`
	Active    bool      `bun:"active,notnull" json:"active"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
