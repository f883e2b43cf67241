package types

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// PolicyAction enumerates the supported authorization actions enforced by the
// scope guard. Host applications can remap these actions to their own
// policies or ACL systems.
type PolicyAction string

const (
	PolicyActionListsRead            PolicyAction = "lists:read"
	PolicyActionPreferencesRead      PolicyAction = "list_preferences:read"
	PolicyActionPreferencesWrite     PolicyAction = "list_preferences:write"
	PolicyActionOrgPreferencesWrite  PolicyAction = "list_preferences:write_org"
	PolicyActionAttributesRead       PolicyAction = "custom_attributes:read"
	PolicyActionAttributesWrite      PolicyAction = "custom_attributes:write"
	PolicyActionAttributeValuesWrite PolicyAction = "custom_attribute_values:write"
	PolicyActionActivityRead         PolicyAction = "list_activity:read"
	PolicyActionActivityWrite        PolicyAction = "list_activity:write"
)

// Writes reports whether the action changes stored list data. Writes always
// run inside one organization.
func (a PolicyAction) Writes() bool {
	switch a {
	case PolicyActionPreferencesWrite, PolicyActionOrgPreferencesWrite,
		PolicyActionAttributesWrite, PolicyActionAttributeValuesWrite,
		PolicyActionActivityWrite:
		return true
	default:
		return false
	}
}

// PolicyCheck captures the authorization context for a single command/query.
type PolicyCheck struct {
	Actor    ActorRef
	Scope    ScopeFilter
	Action   PolicyAction
	TargetID uuid.UUID
}

// ScopeResolver resolves requested scopes into canonical organization values
// based on the actor and host application rules.
type ScopeResolver interface {
	ResolveScope(ctx context.Context, actor ActorRef, requested ScopeFilter) (ScopeFilter, error)
}

// ScopeResolverFunc adapts bare functions to ScopeResolver.
type ScopeResolverFunc func(ctx context.Context, actor ActorRef, requested ScopeFilter) (ScopeFilter, error)

// ResolveScope implements ScopeResolver.
func (f ScopeResolverFunc) ResolveScope(ctx context.Context, actor ActorRef, requested ScopeFilter) (ScopeFilter, error) {
	return f(ctx, actor, requested)
}

// AuthorizationPolicy governs whether an actor can access the requested scope
// for the supplied action.
type AuthorizationPolicy interface {
	Authorize(ctx context.Context, check PolicyCheck) error
}

// AuthorizationPolicyFunc adapts bare functions to AuthorizationPolicy.
type AuthorizationPolicyFunc func(ctx context.Context, check PolicyCheck) error

// Authorize implements AuthorizationPolicy.
func (f AuthorizationPolicyFunc) Authorize(ctx context.Context, check PolicyCheck) error {
	return f(ctx, check)
}

var (
	// ErrUnauthorizedScope indicates the supplied scope is not visible to the
	// actor according to the configured authorization policy.
	ErrUnauthorizedScope = errors.New("go-listviews: actor not authorized for scope")
)

// PassthroughScopeResolver returns the requested scope as-is. This is used
// when host applications do not provide a custom resolver.
type PassthroughScopeResolver struct{}

// ResolveScope implements ScopeResolver.
func (PassthroughScopeResolver) ResolveScope(_ context.Context, _ ActorRef, requested ScopeFilter) (ScopeFilter, error) {
	return requested, nil
}

// AllowAllAuthorizationPolicy allows every action/scope combination.
type AllowAllAuthorizationPolicy struct{}

// Authorize implements AuthorizationPolicy.
func (AllowAllAuthorizationPolicy) Authorize(context.Context, PolicyCheck) error {
	return nil
}

// RolePolicy is the default role-based policy. Patients may only read lists.
// Organization-wide preferences, attribute definitions and the activity feed
// require owner or admin.
type RolePolicy struct{}

// Authorize implements AuthorizationPolicy.
func (RolePolicy) Authorize(_ context.Context, check PolicyCheck) error {
	switch check.Action {
	case PolicyActionOrgPreferencesWrite, PolicyActionAttributesWrite, PolicyActionActivityRead:
		if !check.Actor.IsOrgManager() {
			return ErrUnauthorizedScope
		}
	case PolicyActionPreferencesWrite, PolicyActionAttributeValuesWrite:
		if check.Actor.IsPatient() {
			return ErrUnauthorizedScope
		}
	}
	return nil
}
