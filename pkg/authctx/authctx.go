package authctx

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

const (
	textCodeActorMissing = "ACTOR_CONTEXT_MISSING"
	textCodeActorInvalid = "ACTOR_CONTEXT_INVALID"
	textCodeScopeDenied  = "ACTOR_SCOPE_MISMATCH"
)

// ActorContext is the actor payload a transport attaches to the request
// context after authenticating the caller.
type ActorContext struct {
	ActorID        string `json:"actor_id"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`
}

type actorContextKey struct{}

// WithActorContext stores the actor payload on ctx.
func WithActorContext(ctx context.Context, actor *ActorContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor payload stored by WithActorContext.
func ActorFromContext(ctx context.Context) (*ActorContext, bool) {
	if ctx == nil {
		return nil, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(*ActorContext)
	return actor, ok && actor != nil
}

// ResolveActorContext returns the actor payload or a rich unauthorized error
// when the context carries none.
func ResolveActorContext(ctx context.Context) (*ActorContext, error) {
	if ctx == nil {
		return nil, errors.New("go-listviews: missing request context", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(textCodeActorMissing)
	}
	if actor, ok := ActorFromContext(ctx); ok {
		return actor, nil
	}
	return nil, errors.New("go-listviews: actor context not found on request", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(textCodeActorMissing)
}

// ResolveActor returns both the actor reference consumed by commands and
// queries and the scope carried by the request.
func ResolveActor(ctx context.Context) (types.ActorRef, types.ScopeFilter, error) {
	actorCtx, err := ResolveActorContext(ctx)
	if err != nil {
		return types.ActorRef{}, types.ScopeFilter{}, err
	}
	ref, err := ActorRefFromActorContext(actorCtx)
	if err != nil {
		return types.ActorRef{}, types.ScopeFilter{}, err
	}
	return ref, ScopeFromActorContext(actorCtx), nil
}

// ActorRefFromActorContext converts the request payload into an ActorRef.
func ActorRefFromActorContext(actor *ActorContext) (types.ActorRef, error) {
	if actor == nil {
		return types.ActorRef{}, errors.New("go-listviews: actor context is nil", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(textCodeActorInvalid)
	}
	if strings.TrimSpace(actor.ActorID) == "" {
		return types.ActorRef{}, errors.New("go-listviews: actor context missing actor_id", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(textCodeActorInvalid)
	}
	actorID, err := uuid.Parse(actor.ActorID)
	if err != nil {
		return types.ActorRef{}, errors.Wrap(err, errors.CategoryAuth, "go-listviews: invalid actor_id on actor context").
			WithCode(errors.CodeUnauthorized).
			WithTextCode(textCodeActorInvalid)
	}
	return types.ActorRef{ID: actorID, Type: actor.Role}, nil
}

// ScopeFromActorContext builds a ScopeFilter from the organization stored on
// the actor payload. Malformed identifiers yield an empty scope.
func ScopeFromActorContext(actor *ActorContext) types.ScopeFilter {
	if actor == nil {
		return types.ScopeFilter{}
	}
	return types.ScopeFilter{OrgID: parseUUID(actor.OrganizationID)}
}

// ScopeResolver fills the organization from the request actor when the
// caller did not supply one, and rejects requests that name a different
// organization than the actor belongs to. Requests without an actor context
// pass through unchanged.
type ScopeResolver struct{}

// ResolveScope implements types.ScopeResolver.
func (ScopeResolver) ResolveScope(ctx context.Context, _ types.ActorRef, requested types.ScopeFilter) (types.ScopeFilter, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return requested, nil
	}
	bound := ScopeFromActorContext(actor)
	if bound.IsZero() {
		return requested, nil
	}
	if requested.IsZero() {
		return bound, nil
	}
	if requested.OrgID != bound.OrgID {
		return types.ScopeFilter{}, errors.Wrap(types.ErrUnauthorizedScope, errors.CategoryAuthz, "go-listviews: organization does not match actor").
			WithCode(errors.CodeForbidden).
			WithTextCode(textCodeScopeDenied)
	}
	return requested, nil
}

func parseUUID(raw string) uuid.UUID {
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
