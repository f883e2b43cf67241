package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Object permission codenames.
const (
	PermissionView   = "view"
	PermissionChange = "change"
	PermissionDelete = "delete"
)

// ObjectTypeListPreference is the object type recorded on list preference grants.
const ObjectTypeListPreference = "list_view_preference"

// GranteeKind distinguishes user grants from role grants.
type GranteeKind string

const (
	GranteeUser GranteeKind = "user"
	GranteeRole GranteeKind = "role"
)

// OrgRole is a role provisioned inside one organization.
type OrgRole struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Name      string
	CreatedAt time.Time
}

// ObjectGrant is one object-level permission.
type ObjectGrant struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	Permission  string
	ObjectType  string
	ObjectID    uuid.UUID
	GranteeKind GranteeKind
	GranteeID   uuid.UUID
	GrantedAt   time.Time
}

// PermissionRegistry stores organization roles and object-level grants.
type PermissionRegistry interface {
	EnsureOrgRoles(ctx context.Context, orgID uuid.UUID) ([]OrgRole, error)
	AssignDefaultPreferencePermissions(ctx context.Context, pref ListPreference) error
	HasPermission(ctx context.Context, userID uuid.UUID, permission, objectType string, objectID uuid.UUID) (bool, error)
	ListGrants(ctx context.Context, objectType string, objectID uuid.UUID) ([]ObjectGrant, error)
	RevokeObjectPermissions(ctx context.Context, objectType string, objectID uuid.UUID) error
}
