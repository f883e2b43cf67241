package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/activity"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

// AttributeCommandConfig wires dependencies for the custom attribute commands.
type AttributeCommandConfig struct {
	Registry   types.AttributeRegistry
	Activity   types.ActivitySink
	Hooks      types.Hooks
	Clock      types.Clock
	Logger     types.Logger
	ScopeGuard scope.Guard
}

// DefineAttributeInput defines a custom attribute for one subject kind of an
// organization.
type DefineAttributeInput struct {
	Scope       types.ScopeFilter
	SubjectKind types.SubjectKind
	Name        string
	DataType    types.DataType
	IsMulti     bool
	Options     []types.EnumOptionInput
	Actor       types.ActorRef
	Result      *types.AttributeDefinition
}

// Type implements gocommand.Message.
func (DefineAttributeInput) Type() string {
	return "command.custom_attribute.define"
}

// Validate implements gocommand.Message.
func (input DefineAttributeInput) Validate() error {
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	return nil
}

// DefineAttributeCommand creates custom attribute definitions.
type DefineAttributeCommand struct {
	registry types.AttributeRegistry
	sink     types.ActivitySink
	hooks    types.Hooks
	clock    types.Clock
	logger   types.Logger
	guard    scope.Guard
}

// NewDefineAttributeCommand constructs the handler.
func NewDefineAttributeCommand(cfg AttributeCommandConfig) *DefineAttributeCommand {
	return &DefineAttributeCommand{
		registry: cfg.Registry,
		sink:     cfg.Activity,
		hooks:    cfg.Hooks,
		clock:    safeClock(cfg.Clock),
		logger:   safeLogger(cfg.Logger),
		guard:    safeScopeGuard(cfg.ScopeGuard),
	}
}

var _ gocommand.Commander[DefineAttributeInput] = (*DefineAttributeCommand)(nil)

// Execute authorizes the actor and creates the attribute.
func (c *DefineAttributeCommand) Execute(ctx context.Context, input DefineAttributeInput) error {
	if c.registry == nil {
		return types.ErrMissingAttributeRegistry
	}
	if err := input.Validate(); err != nil {
		return err
	}
	resolved, err := c.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionAttributesWrite, uuid.Nil)
	if err != nil {
		return err
	}
	def, err := c.registry.CreateAttribute(ctx, types.AttributeInput{
		Scope:    types.SubjectScope{OrgID: resolved.OrgID, Kind: input.SubjectKind},
		Name:     input.Name,
		DataType: input.DataType,
		IsMulti:  input.IsMulti,
		Options:  input.Options,
	})
	if err != nil {
		return err
	}

	if record, err := activity.BuildRecord(input.Actor, resolved, types.VerbAttributeDefined, types.ObjectTypeCustomAttribute, def.ID.String(), map[string]any{
		"name":         def.Name,
		"subject_kind": string(def.SubjectKind),
		"data_type":    string(def.DataType),
		"is_multi":     def.IsMulti,
		"options":      len(def.Options),
	}); err == nil {
		record.OccurredAt = now(c.clock)
		logActivity(ctx, c.sink, c.hooks, c.logger, record)
	}

	if input.Result != nil {
		*input.Result = *def
	}
	return nil
}
