package types

import "strings"

const (
	// OrgRoleOwner represents organization owners.
	OrgRoleOwner = "owner"
	// OrgRoleAdmin represents organization administrators.
	OrgRoleAdmin = "admin"
	// OrgRoleStaff represents clinical and operations staff.
	OrgRoleStaff = "staff"
	// OrgRolePatient represents patients with portal access to the organization.
	OrgRolePatient = "patient"
)

// DefaultOrgRoles lists the roles provisioned for every organization.
func DefaultOrgRoles() []string {
	return []string{OrgRoleOwner, OrgRoleAdmin, OrgRoleStaff, OrgRolePatient}
}

// RoleName normalizes the actor role for comparisons.
func (a ActorRef) RoleName() string {
	return normalizeRole(a.Type)
}

// IsRole reports whether the actor matches the provided role.
func (a ActorRef) IsRole(role string) bool {
	role = normalizeRole(role)
	if role == "" {
		return a.RoleName() == ""
	}
	return a.RoleName() == role
}

// IsOrgManager reports whether the actor may manage organization defaults.
func (a ActorRef) IsOrgManager() bool {
	return a.IsRole(OrgRoleOwner) || a.IsRole(OrgRoleAdmin)
}

// IsPatient reports whether the actor is a patient.
func (a ActorRef) IsPatient() bool {
	return a.IsRole(OrgRolePatient)
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
