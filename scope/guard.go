// Package scope resolves the organization a list view request runs in and
// authorizes the actor's action inside it.
package scope

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

// Guard resolves the organization of a list view request and authorizes the
// action. The returned filter is the one every later read or write must use.
type Guard interface {
	Enforce(ctx context.Context, actor types.ActorRef, requested types.ScopeFilter, action types.PolicyAction, target uuid.UUID) (types.ScopeFilter, error)
}

// Option configures a guard.
type Option func(*guard)

// WithLogger records denied actions.
func WithLogger(logger types.Logger) Option {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

type guard struct {
	resolver types.ScopeResolver
	policy   types.AuthorizationPolicy
	logger   types.Logger
}

// NewGuard builds a Guard from the host's scope resolver and policy. A nil
// resolver keeps the requested organization; a nil policy allows every
// action.
func NewGuard(resolver types.ScopeResolver, policy types.AuthorizationPolicy, opts ...Option) Guard {
	g := guard{
		resolver: resolver,
		policy:   policy,
		logger:   types.NopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&g)
		}
	}
	return g
}

// Ensure returns g, or a guard without resolver and policy when g is nil.
func Ensure(g Guard) Guard {
	if g == nil {
		return NopGuard()
	}
	return g
}

// NopGuard returns a guard that keeps the requested organization and allows
// every action. Writes still need an organization.
func NopGuard() Guard {
	return guard{logger: types.NopLogger{}}
}

// Enforce resolves the requested organization, requires one for writes and
// authorizes the action against it. Policy denials are returned as
// forbidden errors carrying the SCOPE_DENIED text code.
func (g guard) Enforce(ctx context.Context, actor types.ActorRef, requested types.ScopeFilter, action types.PolicyAction, target uuid.UUID) (types.ScopeFilter, error) {
	resolved := requested
	if g.resolver != nil {
		var err error
		resolved, err = g.resolver.ResolveScope(ctx, actor, requested)
		if err != nil {
			return types.ScopeFilter{}, err
		}
	}
	if action.Writes() && resolved.OrgID == uuid.Nil {
		return types.ScopeFilter{}, types.ValidationError(types.ErrOrganizationRequired, types.TextCodeOrganizationRequired, map[string]any{
			"action": string(action),
		})
	}
	if g.policy != nil && action != "" {
		err := g.policy.Authorize(ctx, types.PolicyCheck{
			Actor:    actor,
			Scope:    resolved,
			Action:   action,
			TargetID: target,
		})
		if err != nil {
			g.logDenial(actor, resolved, action, target, err)
			return types.ScopeFilter{}, denied(err)
		}
	}
	return resolved, nil
}

func (g guard) logDenial(actor types.ActorRef, resolved types.ScopeFilter, action types.PolicyAction, target uuid.UUID, err error) {
	fields := []any{
		"action", string(action),
		"actor_id", actor.ID.String(),
		"actor_role", actor.Type,
		"organization_id", resolved.OrgID.String(),
	}
	if target != uuid.Nil {
		fields = append(fields, "target_id", target.String())
	}
	fields = append(fields, "reason", err.Error())
	g.logger.Warn("list view action denied", fields...)
}

// denied keeps rich errors from custom policies and wraps bare ones.
func denied(err error) error {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	return types.ForbiddenError(err, types.TextCodeScopeDenied)
}
