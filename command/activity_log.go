package command

import (
	"context"
	"strings"
	"time"

	gocommand "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/activity"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

// ActivityLogInput reports a list view event raised by the host, such as a
// list export, so it shows up in the organization's activity feed. UserID
// names the user whose view was used, if any.
type ActivityLogInput struct {
	Actor      types.ActorRef
	Scope      types.ScopeFilter
	UserID     uuid.UUID
	ListType   types.ListType
	Verb       string
	Data       map[string]any
	OccurredAt time.Time
}

// Type implements gocommand.Message.
func (ActivityLogInput) Type() string {
	return "command.list_activity.log"
}

// Validate implements gocommand.Message.
func (input ActivityLogInput) Validate() error {
	if input.Actor.ID == uuid.Nil {
		return ErrActorRequired
	}
	verb := strings.TrimSpace(input.Verb)
	if verb == "" {
		return ErrActivityVerbRequired
	}
	if types.ReservedVerb(verb) {
		return types.ValidationError(ErrReservedActivityVerb, types.TextCodeReservedVerb, map[string]any{
			"verb": verb,
		})
	}
	if _, ok := types.ParseListType(string(input.ListType)); !ok {
		return types.ValidationError(types.ErrInvalidListType, types.TextCodeInvalidListType, map[string]any{
			"list_type": string(input.ListType),
		})
	}
	return nil
}

// ActivityLogCommand records host-reported list view events.
type ActivityLogCommand struct {
	sink   types.ActivitySink
	hooks  types.Hooks
	clock  types.Clock
	logger types.Logger
	guard  scope.Guard
}

// ActivityLogConfig wires dependencies for the log command.
type ActivityLogConfig struct {
	Sink       types.ActivitySink
	Hooks      types.Hooks
	Clock      types.Clock
	Logger     types.Logger
	ScopeGuard scope.Guard
}

// NewActivityLogCommand constructs the logging command handler.
func NewActivityLogCommand(cfg ActivityLogConfig) *ActivityLogCommand {
	return &ActivityLogCommand{
		sink:   cfg.Sink,
		hooks:  cfg.Hooks,
		clock:  safeClock(cfg.Clock),
		logger: safeLogger(cfg.Logger),
		guard:  safeScopeGuard(cfg.ScopeGuard),
	}
}

var _ gocommand.Commander[ActivityLogInput] = (*ActivityLogCommand)(nil)

// Execute records the event in the resolved organization. Unlike the
// activity written as a side effect of other commands, a sink failure is
// returned to the caller.
func (c *ActivityLogCommand) Execute(ctx context.Context, input ActivityLogInput) error {
	if c.sink == nil {
		return types.ErrMissingActivitySink
	}
	if err := input.Validate(); err != nil {
		return err
	}
	listType, _ := types.ParseListType(string(input.ListType))
	resolved, err := c.guard.Enforce(ctx, input.Actor, input.Scope, types.PolicyActionActivityWrite, input.UserID)
	if err != nil {
		return err
	}

	data := cloneMap(input.Data)
	if data == nil {
		data = map[string]any{}
	}
	data["list_type"] = string(listType)
	record, err := activity.BuildRecord(input.Actor, resolved, input.Verb, types.ObjectTypeListView, string(listType), data)
	if err != nil {
		return err
	}
	record.UserID = input.UserID
	record.OccurredAt = input.OccurredAt
	if record.OccurredAt.IsZero() {
		record.OccurredAt = now(c.clock)
	}
	if err := c.sink.Log(ctx, record); err != nil {
		return err
	}
	c.logger.Debug("logged list view activity",
		"verb", record.Verb,
		"list_type", string(listType),
		"organization_id", resolved.OrgID.String(),
	)
	emitActivityHook(ctx, c.hooks, record)
	return nil
}
