package permissions

import (
	"context"
	"errors"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// RegistryConfig configures the Bun-backed permission registry. Either DB or
// all three repositories must be provided.
type RegistryConfig struct {
	DB          *bun.DB
	Roles       repository.Repository[*Role]
	Members     repository.Repository[*RoleMember]
	Grants      repository.Repository[*Grant]
	Clock       types.Clock
	Logger      types.Logger
	IDGenerator types.IDGenerator
}

// Registry persists organization roles and object grants using Bun
// repositories.
type Registry struct {
	roles   repository.Repository[*Role]
	members repository.Repository[*RoleMember]
	grants  repository.Repository[*Grant]
	clock   types.Clock
	logger  types.Logger
	idGen   types.IDGenerator
}

// NewRegistry constructs the default registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}

	roles, members, grants := cfg.Roles, cfg.Members, cfg.Grants
	if roles == nil || members == nil || grants == nil {
		if cfg.DB == nil {
			return nil, errors.New("permissions: db or repositories must be provided")
		}
		if roles == nil {
			roles = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Role]{
				NewRecord: func() *Role { return &Role{} },
				GetID: func(role *Role) uuid.UUID {
					if role == nil {
						return uuid.Nil
					}
					return role.ID
				},
				SetID: func(role *Role, id uuid.UUID) {
					if role != nil {
						role.ID = id
					}
				},
			})
		}
		if members == nil {
			members = repository.NewRepository(cfg.DB, repository.ModelHandlers[*RoleMember]{
				NewRecord: func() *RoleMember { return &RoleMember{} },
				GetID: func(*RoleMember) uuid.UUID {
					return uuid.Nil
				},
				SetID: func(*RoleMember, uuid.UUID) {},
			})
		}
		if grants == nil {
			grants = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Grant]{
				NewRecord: func() *Grant { return &Grant{} },
				GetID: func(grant *Grant) uuid.UUID {
					if grant == nil {
						return uuid.Nil
					}
					return grant.ID
				},
				SetID: func(grant *Grant, id uuid.UUID) {
					if grant != nil {
						grant.ID = id
					}
				},
			})
		}
	}

	return &Registry{
		roles:   roles,
		members: members,
		grants:  grants,
		clock:   clock,
		logger:  logger,
		idGen:   idGen,
	}, nil
}

var _ types.PermissionRegistry = (*Registry)(nil)

// EnsureOrgRoles provisions the default roles of an organization and returns
// them. Roles that already exist are left untouched.
func (r *Registry) EnsureOrgRoles(ctx context.Context, orgID uuid.UUID) ([]types.OrgRole, error) {
	return r.ensureOrgRoles(ctx, nil, orgID)
}

func (r *Registry) ensureOrgRoles(ctx context.Context, tx bun.IDB, orgID uuid.UUID) ([]types.OrgRole, error) {
	if orgID == uuid.Nil {
		return nil, types.ValidationError(types.ErrOrganizationRequired, types.TextCodeOrganizationRequired, nil)
	}
	existing, err := r.listRoles(ctx, tx, orgID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]struct{}, len(existing))
	for _, role := range existing {
		byName[role.Name] = struct{}{}
	}
	created := false
	for _, name := range types.DefaultOrgRoles() {
		if _, ok := byName[name]; ok {
			continue
		}
		role := &Role{
			ID:        r.idGen.UUID(),
			OrgID:     orgID,
			Name:      name,
			CreatedAt: r.clock.Now(),
		}
		var err error
		if tx == nil {
			_, err = r.roles.Create(ctx, role, ignoreDuplicates)
		} else {
			_, err = r.roles.CreateTx(ctx, tx, role, ignoreDuplicates)
		}
		if err != nil && !types.IsUniqueViolation(err) {
			return nil, err
		}
		created = true
	}
	if !created {
		return toOrgRoles(existing), nil
	}
	r.logger.Info("provisioned organization roles", "organization_id", orgID.String())
	records, err := r.listRoles(ctx, tx, orgID)
	if err != nil {
		return nil, err
	}
	return toOrgRoles(records), nil
}

// AssignRole adds the user to the named organization role.
func (r *Registry) AssignRole(ctx context.Context, orgID, userID uuid.UUID, roleName string) error {
	if userID == uuid.Nil {
		return types.ValidationError(types.ErrUserIDRequired, types.TextCodeUserRequired, nil)
	}
	role, err := r.roleByName(ctx, orgID, roleName)
	if err != nil {
		return err
	}
	_, err = r.members.Create(ctx, &RoleMember{
		RoleID:     role.ID,
		UserID:     userID,
		OrgID:      orgID,
		AssignedAt: r.clock.Now(),
	})
	if err != nil && !types.IsUniqueViolation(err) {
		return err
	}
	return nil
}

// UnassignRole removes the user from the named organization role.
func (r *Registry) UnassignRole(ctx context.Context, orgID, userID uuid.UUID, roleName string) error {
	role, err := r.roleByName(ctx, orgID, roleName)
	if err != nil {
		return err
	}
	return r.members.DeleteWhere(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("role_id = ? AND user_id = ?", role.ID, userID)
	})
}

// AssignDefaultPreferencePermissions grants the default permissions of a newly
// created list preference. Organization defaults are viewable by every
// non-patient role and editable by owners and admins. Personal preferences
// belong to their user alone.
func (r *Registry) AssignDefaultPreferencePermissions(ctx context.Context, pref types.ListPreference) error {
	return r.assignDefaults(ctx, nil, pref)
}

// AssignDefaultPreferencePermissionsTx is AssignDefaultPreferencePermissions
// run against tx, so the grants commit together with the preference row.
func (r *Registry) AssignDefaultPreferencePermissionsTx(ctx context.Context, tx bun.IDB, pref types.ListPreference) error {
	if tx == nil {
		return errors.New("permissions: transaction required")
	}
	return r.assignDefaults(ctx, tx, pref)
}

func (r *Registry) assignDefaults(ctx context.Context, tx bun.IDB, pref types.ListPreference) error {
	if pref.ID == uuid.Nil {
		return errors.New("permissions: preference id required")
	}
	switch pref.Scope {
	case types.PreferenceScopeUser:
		if pref.UserID == uuid.Nil {
			return types.ValidationError(types.ErrUserIDRequired, types.TextCodeUserRequired, nil)
		}
		for _, perm := range []string{types.PermissionView, types.PermissionChange, types.PermissionDelete} {
			if err := r.grant(ctx, tx, pref.OrgID, perm, pref.ID, types.GranteeUser, pref.UserID); err != nil {
				return err
			}
		}
	case types.PreferenceScopeOrganization:
		roles, err := r.ensureOrgRoles(ctx, tx, pref.OrgID)
		if err != nil {
			return err
		}
		for _, role := range roles {
			if role.Name == types.OrgRolePatient {
				continue
			}
			perms := []string{types.PermissionView}
			if role.Name == types.OrgRoleOwner || role.Name == types.OrgRoleAdmin {
				perms = append(perms, types.PermissionChange, types.PermissionDelete)
			}
			for _, perm := range perms {
				if err := r.grant(ctx, tx, pref.OrgID, perm, pref.ID, types.GranteeRole, role.ID); err != nil {
					return err
				}
			}
		}
	default:
		return types.ValidationError(types.ErrInvalidPreferenceScope, types.TextCodeInvalidScope, map[string]any{
			"scope": string(pref.Scope),
		})
	}
	r.logger.Debug("assigned default list preference permissions",
		"preference_id", pref.ID.String(),
		"scope", string(pref.Scope),
	)
	return nil
}

// HasPermission reports whether the user holds permission on the object,
// directly or through one of their roles.
func (r *Registry) HasPermission(ctx context.Context, userID uuid.UUID, permission, objectType string, objectID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, nil
	}
	memberships, _, err := r.members.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("user_id = ?", userID)
	})
	if err != nil {
		return false, err
	}
	roleIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		roleIDs = append(roleIDs, m.RoleID)
	}
	grants, _, err := r.grants.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("permission = ?", permission).
			Where("object_type = ?", objectType).
			Where("object_id = ?", objectID)
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("grantee_kind = ? AND grantee_id = ?", string(types.GranteeUser), userID)
			if len(roleIDs) > 0 {
				q = q.WhereOr("grantee_kind = ? AND grantee_id IN (?)", string(types.GranteeRole), bun.In(roleIDs))
			}
			return q
		}).Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(grants) > 0, nil
}

// ListGrants returns the grants recorded on one object.
func (r *Registry) ListGrants(ctx context.Context, objectType string, objectID uuid.UUID) ([]types.ObjectGrant, error) {
	records, _, err := r.grants.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("object_type = ?", objectType).
			Where("object_id = ?", objectID).
			OrderExpr("grantee_kind ASC").
			OrderExpr("permission ASC")
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.ObjectGrant, 0, len(records))
	for _, rec := range records {
		out = append(out, toObjectGrant(rec))
	}
	return out, nil
}

// RevokeObjectPermissions removes every grant recorded on one object.
func (r *Registry) RevokeObjectPermissions(ctx context.Context, objectType string, objectID uuid.UUID) error {
	return r.grants.DeleteWhere(ctx, objectCriteria(objectType, objectID))
}

// RevokeObjectPermissionsTx is RevokeObjectPermissions run against tx.
func (r *Registry) RevokeObjectPermissionsTx(ctx context.Context, tx bun.IDB, objectType string, objectID uuid.UUID) error {
	if tx == nil {
		return errors.New("permissions: transaction required")
	}
	return r.grants.DeleteWhereTx(ctx, tx, objectCriteria(objectType, objectID))
}

// ignoreDuplicates keeps a duplicate insert from aborting an open Postgres
// transaction.
func ignoreDuplicates(q *bun.InsertQuery) *bun.InsertQuery {
	return q.On("CONFLICT DO NOTHING")
}

func objectCriteria(objectType string, objectID uuid.UUID) repository.DeleteCriteria {
	return func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("object_type = ? AND object_id = ?", objectType, objectID)
	}
}

func (r *Registry) grant(ctx context.Context, tx bun.IDB, orgID uuid.UUID, permission string, objectID uuid.UUID, kind types.GranteeKind, granteeID uuid.UUID) error {
	record := &Grant{
		ID:          r.idGen.UUID(),
		OrgID:       orgID,
		Permission:  permission,
		ObjectType:  types.ObjectTypeListPreference,
		ObjectID:    objectID,
		GranteeKind: string(kind),
		GranteeID:   granteeID,
		GrantedAt:   r.clock.Now(),
	}
	var err error
	if tx == nil {
		_, err = r.grants.Create(ctx, record, ignoreDuplicates)
	} else {
		_, err = r.grants.CreateTx(ctx, tx, record, ignoreDuplicates)
	}
	if err != nil && !types.IsUniqueViolation(err) {
		return err
	}
	return nil
}

func (r *Registry) listRoles(ctx context.Context, tx bun.IDB, orgID uuid.UUID) ([]*Role, error) {
	criteria := func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("organization_id = ?", orgID).OrderExpr("name ASC")
	}
	if tx == nil {
		records, _, err := r.roles.List(ctx, criteria)
		return records, err
	}
	records, _, err := r.roles.ListTx(ctx, tx, criteria)
	return records, err
}

func (r *Registry) roleByName(ctx context.Context, orgID uuid.UUID, name string) (*Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	roles, err := r.EnsureOrgRoles(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if role.Name == name {
			return &Role{ID: role.ID, OrgID: role.OrgID, Name: role.Name, CreatedAt: role.CreatedAt}, nil
		}
	}
	return nil, types.ValidationError(errors.New("permissions: unknown role"), types.TextCodeScopeDenied, map[string]any{
		"role": name,
	})
}

func toOrgRoles(records []*Role) []types.OrgRole {
	out := make([]types.OrgRole, 0, len(records))
	for _, rec := range records {
		out = append(out, types.OrgRole{
			ID:        rec.ID,
			OrgID:     rec.OrgID,
			Name:      rec.Name,
			CreatedAt: rec.CreatedAt,
		})
	}
	return out
}

func toObjectGrant(rec *Grant) types.ObjectGrant {
	return types.ObjectGrant{
		ID:          rec.ID,
		OrgID:       rec.OrgID,
		Permission:  rec.Permission,
		ObjectType:  rec.ObjectType,
		ObjectID:    rec.ObjectID,
		GranteeKind: types.GranteeKind(rec.GranteeKind),
		GranteeID:   rec.GranteeID,
		GrantedAt:   rec.GrantedAt,
	}
}
