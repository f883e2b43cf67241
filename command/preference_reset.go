package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/activity"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

// ResetPreferenceInput identifies the tier to reset. A zero UserID resets the
// organization default.
type ResetPreferenceInput struct {
	Scope    types.ScopeFilter
	UserID   uuid.UUID
	ListType types.ListType
	Actor    types.ActorRef
}

// Type implements gocommand.Message.
func (ResetPreferenceInput) Type() string {
	return "command.list_preference.reset"
}

// Validate implements gocommand.Message.
func (input ResetPreferenceInput) Validate() error {
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	if _, ok := types.ParseListType(string(input.ListType)); !ok {
		return types.ValidationError(types.ErrInvalidListType, types.TextCodeInvalidListType, map[string]any{
			"list_type": string(input.ListType),
		})
	}
	return nil
}

// ResetPreferenceCommand deletes the preference stored at one tier so
// resolution falls through to the next one. Resetting an absent row is a
// no-op.
type ResetPreferenceCommand struct {
	repo   types.PreferenceRepository
	writer preferenceWriter
	sink   types.ActivitySink
	hooks  types.Hooks
	clock  types.Clock
	logger types.Logger
	guard  scope.Guard
}

// NewResetPreferenceCommand constructs the reset handler.
func NewResetPreferenceCommand(cfg PreferenceCommandConfig) *ResetPreferenceCommand {
	return &ResetPreferenceCommand{
		repo:   cfg.Repository,
		writer: newPreferenceWriter(cfg),
		sink:   cfg.Activity,
		hooks:  cfg.Hooks,
		clock:  safeClock(cfg.Clock),
		logger: safeLogger(cfg.Logger),
		guard:  safeScopeGuard(cfg.ScopeGuard),
	}
}

var _ gocommand.Commander[ResetPreferenceInput] = (*ResetPreferenceCommand)(nil)

// Execute removes the stored row and its object grants.
func (c *ResetPreferenceCommand) Execute(ctx context.Context, input ResetPreferenceInput) error {
	if c.repo == nil {
		return types.ErrMissingPreferenceRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	listType, _ := types.ParseListType(string(input.ListType))

	key := types.PreferenceKey{
		Scope:    types.PreferenceScopeOrganization,
		ListType: listType,
	}
	action := types.PolicyActionOrgPreferencesWrite
	if input.UserID != uuid.Nil {
		key.Scope = types.PreferenceScopeUser
		key.UserID = input.UserID
		action = types.PolicyActionPreferencesWrite
	}
	resolved, err := c.guard.Enforce(ctx, input.Actor, input.Scope, action, input.UserID)
	if err != nil {
		return err
	}
	key.OrgID = resolved.OrgID

	existing, err := c.repo.FindPreference(ctx, key)
	if err != nil {
		return err
	}
	if existing == nil {
		c.logger.Debug("list preference already absent",
			"scope", string(key.Scope),
			"list_type", string(listType),
		)
		return nil
	}
	if err := c.writer.remove(ctx, key, existing.ID); err != nil {
		return err
	}

	if record, err := activity.BuildRecord(input.Actor, resolved, types.VerbPreferenceReset, types.ObjectTypeListPreference, existing.ID.String(), map[string]any{
		"scope":     string(key.Scope),
		"list_type": string(listType),
	}); err == nil {
		record.UserID = input.UserID
		record.OccurredAt = now(c.clock)
		logActivity(ctx, c.sink, c.hooks, c.logger, record)
	}

	emitPreferenceHook(ctx, c.hooks, types.PreferenceEvent{
		PreferenceID: existing.ID,
		UserID:       input.UserID,
		Scope:        resolved,
		ListType:     listType,
		Level:        key.Scope,
		Action:       "list_preference.reset",
		ActorID:      input.Actor.ID,
		OccurredAt:   now(c.clock),
	})
	return nil
}
