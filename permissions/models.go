package permissions

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role represents rows in organization_roles.
type Role struct {
	bun.BaseModel `bun:"table:organization_roles"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	OrgID     uuid.UUID `bun:"organization_id,type:uuid,notnull"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// RoleMember represents rows in organization_role_members.
type RoleMember struct {
	bun.BaseModel `bun:"table:organization_role_members"`

	RoleID     uuid.UUID `bun:"role_id,type:uuid,pk"`
	UserID     uuid.UUID `bun:"user_id,type:uuid,pk"`
	OrgID      uuid.UUID `bun:"organization_id,type:uuid,notnull"`
	AssignedAt time.Time `bun:"assigned_at,notnull"`
}

// Grant represents rows in object_permissions.
type Grant struct {
	bun.BaseModel `bun:"table:object_permissions"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	OrgID       uuid.UUID `bun:"organization_id,type:uuid,notnull"`
	Permission  string    `bun:"permission,notnull"`
	ObjectType  string    `bun:"object_type,notnull"`
	ObjectID    uuid.UUID `bun:"object_id,type:uuid,notnull"`
	GranteeKind string    `bun:"grantee_kind,notnull"`
	GranteeID   uuid.UUID `bun:"grantee_id,type:uuid,notnull"`
	GrantedAt   time.Time `bun:"granted_at,notnull"`
}
