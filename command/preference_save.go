package command

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	featuregate "github.com/goliatone/go-featuregate/gate"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/activity"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/scope"
)

// PreferenceCommandConfig wires dependencies for the preference commands.
type PreferenceCommandConfig struct {
	Repository  types.PreferenceRepository
	Permissions types.PermissionRegistry
	Activity    types.ActivitySink
	Hooks       types.Hooks
	Clock       types.Clock
	Logger      types.Logger
	ScopeGuard  scope.Guard
	FeatureGate featuregate.FeatureGate
	// Transactions runs the row write and its grants in one transaction.
	// Defaults to the repository when it implements RunInTx.
	Transactions repository.TransactionManager
}

// SavePreferenceInput captures a list preference save. A zero UserID saves
// the organization default. Nil columns and filters are stored as empty
// values, and a non-positive page size is stored as the default page size.
type SavePreferenceInput struct {
	Scope          types.ScopeFilter
	UserID         uuid.UUID
	ListType       types.ListType
	VisibleColumns []string
	DefaultSort    string
	SavedFilters   map[string]any
	ItemsPerPage   int
	Actor          types.ActorRef
	Result         *types.ListPreference
}

// Type implements gocommand.Message.
func (SavePreferenceInput) Type() string {
	return "command.list_preference.save"
}

// Validate implements gocommand.Message.
func (input SavePreferenceInput) Validate() error {
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

// SavePreferenceCommand upserts a user or organization list preference.
type SavePreferenceCommand struct {
	repo   types.PreferenceRepository
	writer preferenceWriter
	sink   types.ActivitySink
	hooks  types.Hooks
	clock  types.Clock
	logger types.Logger
	guard  scope.Guard
	gate   featuregate.FeatureGate
}

// NewSavePreferenceCommand constructs the save handler.
func NewSavePreferenceCommand(cfg PreferenceCommandConfig) *SavePreferenceCommand {
	return &SavePreferenceCommand{
		repo:   cfg.Repository,
		writer: newPreferenceWriter(cfg),
		sink:   cfg.Activity,
		hooks:  cfg.Hooks,
		clock:  safeClock(cfg.Clock),
		logger: safeLogger(cfg.Logger),
		guard:  safeScopeGuard(cfg.ScopeGuard),
		gate:   cfg.FeatureGate,
	}
}

var _ gocommand.Commander[SavePreferenceInput] = (*SavePreferenceCommand)(nil)

// Execute validates, authorizes and persists the preference. Default
// permissions are granted only when the row was created by this save.
func (c *SavePreferenceCommand) Execute(ctx context.Context, input SavePreferenceInput) error {
	if c.repo == nil {
		return types.ErrMissingPreferenceRepository
	}
	if err := input.Validate(); err != nil {
		return err
	}
	listType, _ := types.ParseListType(string(input.ListType))

	level := types.PreferenceScopeOrganization
	action := types.PolicyActionOrgPreferencesWrite
	if input.UserID != uuid.Nil {
		level = types.PreferenceScopeUser
		action = types.PolicyActionPreferencesWrite
	}
	resolved, err := c.guard.Enforce(ctx, input.Actor, input.Scope, action, input.UserID)
	if err != nil {
		return err
	}

	if level == types.PreferenceScopeUser {
		enabled, err := featureEnabled(ctx, c.gate, FeatureUserPreferences, resolved, input.UserID)
		if err != nil {
			return err
		}
		if !enabled {
			return types.ForbiddenError(types.ErrUserPreferencesDisabled, types.TextCodeFeatureDisabled)
		}
	}

	pref := types.ListPreference{
		Scope:          level,
		UserID:         input.UserID,
		OrgID:          resolved.OrgID,
		ListType:       listType,
		VisibleColumns: coerceColumns(input.VisibleColumns),
		DefaultSort:    input.DefaultSort,
		SavedFilters:   coerceFilters(input.SavedFilters),
		ItemsPerPage:   coercePageSize(input.ItemsPerPage),
		CreatedBy:      input.Actor.ID,
		UpdatedBy:      input.Actor.ID,
	}
	saved, created, err := c.writer.save(ctx, pref)
	if err != nil {
		return err
	}

	eventAction := "list_preference.updated"
	if created {
		eventAction = "list_preference.created"
	}
	c.logger.Debug("saved list preference",
		"preference_id", saved.ID.String(),
		"scope", string(level),
		"list_type", string(listType),
		"created", created,
	)

	if record, err := activity.BuildRecord(input.Actor, resolved, types.VerbPreferenceSaved, types.ObjectTypeListPreference, saved.ID.String(), map[string]any{
		"scope":           string(level),
		"list_type":       string(listType),
		"created":         created,
		"visible_columns": append([]string{}, saved.VisibleColumns...),
		"default_sort":    saved.DefaultSort,
		"items_per_page":  saved.ItemsPerPage,
		"saved_filters":   cloneMap(saved.SavedFilters),
	}); err == nil {
		record.UserID = input.UserID
		record.OccurredAt = saved.UpdatedAt
		logActivity(ctx, c.sink, c.hooks, c.logger, record)
	}

	emitPreferenceHook(ctx, c.hooks, types.PreferenceEvent{
		PreferenceID: saved.ID,
		UserID:       input.UserID,
		Scope:        resolved,
		ListType:     listType,
		Level:        level,
		Action:       eventAction,
		ActorID:      input.Actor.ID,
		OccurredAt:   now(c.clock),
	})

	if input.Result != nil {
		*input.Result = *saved
	}
	return nil
}

func coerceColumns(cols []string) []string {
	if cols == nil {
		return []string{}
	}
	return append([]string{}, cols...)
}

func coerceFilters(filters map[string]any) map[string]any {
	if filters == nil {
		return map[string]any{}
	}
	return cloneMap(filters)
}

func coercePageSize(size int) int {
	if size <= 0 {
		return types.DefaultItemsPerPage
	}
	return size
}
