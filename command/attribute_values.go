package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/activity"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

// SetAttributeValuesInput replaces the values of one attribute on one
// subject record. An empty Values slice clears them.
type SetAttributeValuesInput struct {
	Scope       types.ScopeFilter
	SubjectKind types.SubjectKind
	AttributeID uuid.UUID
	SubjectID   uuid.UUID
	Values      []types.AttributeValueInput
	Actor       types.ActorRef
	Result      *[]types.AttributeValue
}

// Type implements gocommand.Message.
func (SetAttributeValuesInput) Type() string {
	return "command.custom_attribute.set_values"
}

// Validate implements gocommand.Message.
func (input SetAttributeValuesInput) Validate() error {
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	if input.AttributeID == uuid.Nil {
		return ErrAttributeIDRequired
	}
	if input.SubjectID == uuid.Nil {
		return ErrSubjectIDRequired
	}
	return nil
}

// SetAttributeValuesCommand writes custom attribute values.
type SetAttributeValuesCommand struct {
	registry types.AttributeRegistry
	sink     types.ActivitySink
	hooks    types.Hooks
	clock    types.Clock
	logger   types.Logger
	guard    scope.Guard
}

// NewSetAttributeValuesCommand constructs the handler.
func NewSetAttributeValuesCommand(cfg AttributeCommandConfig) *SetAttributeValuesCommand {
	return &SetAttributeValuesCommand{
		registry: cfg.Registry,
		sink:     cfg.Activity,
		hooks:    cfg.Hooks,
		clock:    safeClock(cfg.Clock),
		logger:   safeLogger(cfg.Logger),
		guard:    safeScopeGuard(cfg.ScopeGuard),
	}
}

var _ gocommand.Commander[SetAttributeValuesInput] = (*SetAttributeValuesCommand)(nil)

// Execute authorizes the actor and replaces the values.
func (c *SetAttributeValuesCommand) Execute(ctx context.Context, input SetAttributeValuesInput) error {
	if c.registry == nil {
		return types.ErrMissingAttributeRegistry
	}
	if err := input.Validate(); err != nil {
		return err
	}
	resolved, err := c.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionAttributeValuesWrite, input.SubjectID)
	if err != nil {
		return err
	}
	subjectScope := types.SubjectScope{OrgID: resolved.OrgID, Kind: input.SubjectKind}
	values, err := c.registry.SetValues(ctx, subjectScope, input.AttributeID, input.SubjectID, input.Values)
	if err != nil {
		return err
	}

	if record, err := activity.BuildRecord(input.Actor, resolved, types.VerbAttributeValuesSet, types.ObjectTypeCustomAttribute, input.AttributeID.String(), map[string]any{
		"subject_kind": string(input.SubjectKind),
		"subject_id":   input.SubjectID.String(),
		"values":       len(values),
	}); err == nil {
		record.OccurredAt = now(c.clock)
		logActivity(ctx, c.sink, c.hooks, c.logger, record)
	}

	if input.Result != nil {
		*input.Result = values
	}
	return nil
}
