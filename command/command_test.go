package command

import (
	"context"
	"errors"
	"testing"
	"time"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thrivehealth/go-listviews/attributes"
	"github.com/thrivehealth/go-listviews/internal/testsupport"
	"github.com/thrivehealth/go-listviews/permissions"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/preferences"
	"github.com/thrivehealth/go-listviews/scope"
)

func TestSavePreferenceCommand_CoercesAbsentValues(t *testing.T) {
	env := newPreferenceEnv(t)
	orgID := uuid.New()
	userID := uuid.New()

	var saved types.ListPreference
	err := env.save.Execute(context.Background(), SavePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		UserID:   userID,
		ListType: types.ListTypeEncounters,
		Actor:    types.ActorRef{ID: userID, Type: types.OrgRoleStaff},
		Result:   &saved,
	})
	require.NoError(t, err)
	require.Equal(t, types.PreferenceScopeUser, saved.Scope)
	require.NotNil(t, saved.VisibleColumns)
	require.Empty(t, saved.VisibleColumns)
	require.Equal(t, "", saved.DefaultSort)
	require.NotNil(t, saved.SavedFilters)
	require.Equal(t, types.DefaultItemsPerPage, saved.ItemsPerPage)
	require.Equal(t, userID, saved.CreatedBy)
}

func TestSavePreferenceCommand_GrantsOnlyOnCreate(t *testing.T) {
	ctx := context.Background()
	env := newPreferenceEnv(t)
	orgID := uuid.New()
	admin := types.ActorRef{ID: uuid.New(), Type: types.OrgRoleAdmin}

	var first types.ListPreference
	require.NoError(t, env.save.Execute(ctx, SavePreferenceInput{
		Scope:          types.ScopeFilter{OrgID: orgID},
		ListType:       types.ListTypePatients,
		VisibleColumns: []string{"first_name"},
		DefaultSort:    "first_name",
		ItemsPerPage:   50,
		Actor:          admin,
		Result:         &first,
	}))
	require.Equal(t, types.PreferenceScopeOrganization, first.Scope)
	require.Equal(t, uuid.Nil, first.UserID)

	grants, err := env.perms.ListGrants(ctx, types.ObjectTypeListPreference, first.ID)
	require.NoError(t, err)
	require.Len(t, grants, 7)

	require.NoError(t, env.perms.RevokeObjectPermissions(ctx, types.ObjectTypeListPreference, first.ID))

	var second types.ListPreference
	require.NoError(t, env.save.Execute(ctx, SavePreferenceInput{
		Scope:          types.ScopeFilter{OrgID: orgID},
		ListType:       types.ListTypePatients,
		VisibleColumns: []string{"email"},
		Actor:          admin,
		Result:         &second,
	}))
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, []string{"email"}, second.VisibleColumns)

	grants, err = env.perms.ListGrants(ctx, types.ObjectTypeListPreference, first.ID)
	require.NoError(t, err)
	require.Empty(t, grants, "updates do not re-grant")

	require.Len(t, env.sink.records, 2)
	require.Equal(t, true, env.sink.records[0].Data["created"])
	require.Equal(t, false, env.sink.records[1].Data["created"])
	require.Equal(t, []string{"list_preference.created", "list_preference.updated"}, env.events)
}

func TestSavePreferenceCommand_RoundTripsThroughResolver(t *testing.T) {
	ctx := context.Background()
	env := newPreferenceEnv(t)
	orgID := uuid.New()
	userID := uuid.New()
	filters := map[string]any{
		"model_fields": map[string]any{"active": true},
	}

	require.NoError(t, env.save.Execute(ctx, SavePreferenceInput{
		Scope:          types.ScopeFilter{OrgID: orgID},
		UserID:         userID,
		ListType:       types.ListTypeEncounters,
		VisibleColumns: []string{"patient__email", "created_at"},
		DefaultSort:    "-created_at",
		SavedFilters:   filters,
		ItemsPerPage:   10,
		Actor:          types.ActorRef{ID: userID, Type: types.OrgRoleStaff},
	}))

	pref, err := env.resolver.Resolve(ctx, preferences.ResolveInput{UserID: userID, OrgID: orgID, ListType: types.ListTypeEncounters})
	require.NoError(t, err)
	require.Equal(t, types.PreferenceSourceUser, pref.Source)
	require.Equal(t, []string{"patient__email", "created_at"}, pref.VisibleColumns)
	require.Equal(t, "-created_at", pref.DefaultSort)
	require.Equal(t, 10, pref.ItemsPerPage)
	require.Equal(t, map[string]any{"active": true}, pref.SavedFilters["model_fields"])

	ok, err := env.perms.HasPermission(ctx, userID, types.PermissionDelete, types.ObjectTypeListPreference, pref.ID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSavePreferenceCommand_FeatureGate(t *testing.T) {
	gate := &stubFeatureGate{enabled: false}
	env := newPreferenceEnv(t, func(cfg *PreferenceCommandConfig) {
		cfg.FeatureGate = gate
	})
	ctx := context.Background()
	orgID := uuid.New()
	userID := uuid.New()

	err := env.save.Execute(ctx, SavePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		UserID:   userID,
		ListType: types.ListTypeEncounters,
		Actor:    types.ActorRef{ID: userID, Type: types.OrgRoleStaff},
	})
	require.ErrorIs(t, err, types.ErrUserPreferencesDisabled)
	require.Equal(t, types.TextCodeFeatureDisabled, types.TextCode(err))
	require.Equal(t, []string{FeatureUserPreferences}, gate.keys)
	require.Len(t, gate.chains, 1)
	chain := gate.chains[0]
	require.Len(t, chain, 3)
	require.Equal(t, featuregate.ScopeUser, chain[0].Kind)
	require.Equal(t, userID.String(), chain[0].ID)
	require.Equal(t, orgID.String(), chain[0].OrgID)
	require.Equal(t, featuregate.ScopeOrg, chain[1].Kind)
	require.Equal(t, orgID.String(), chain[1].ID)
	require.Equal(t, featuregate.ScopeSystem, chain[2].Kind)

	err = env.save.Execute(ctx, SavePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		ListType: types.ListTypeEncounters,
		Actor:    types.ActorRef{ID: uuid.New(), Type: types.OrgRoleOwner},
	})
	require.NoError(t, err, "organization defaults are not gated")
	require.Len(t, gate.keys, 1)

	gate.err = errors.New("gate offline")
	err = env.save.Execute(ctx, SavePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		UserID:   userID,
		ListType: types.ListTypeEncounters,
		Actor:    types.ActorRef{ID: userID, Type: types.OrgRoleStaff},
	})
	require.ErrorContains(t, err, "gate offline")
}

func TestSavePreferenceCommand_PolicyAndValidation(t *testing.T) {
	env := newPreferenceEnv(t, func(cfg *PreferenceCommandConfig) {
		cfg.ScopeGuard = scope.NewGuard(nil, types.RolePolicy{})
	})
	ctx := context.Background()
	orgID := uuid.New()

	err := env.save.Execute(ctx, SavePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		ListType: types.ListTypeEncounters,
		Actor:    types.ActorRef{ID: uuid.New(), Type: types.OrgRoleStaff},
	})
	require.ErrorIs(t, err, types.ErrUnauthorizedScope, "staff cannot save organization defaults")

	patient := uuid.New()
	err = env.save.Execute(ctx, SavePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		UserID:   patient,
		ListType: types.ListTypeEncounters,
		Actor:    types.ActorRef{ID: patient, Type: types.OrgRolePatient},
	})
	require.ErrorIs(t, err, types.ErrUnauthorizedScope)

	err = env.save.Execute(ctx, SavePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		ListType: "invoice_list",
		Actor:    types.ActorRef{ID: uuid.New(), Type: types.OrgRoleOwner},
	})
	require.ErrorIs(t, err, types.ErrInvalidListType)

	err = env.save.Execute(ctx, SavePreferenceInput{ListType: types.ListTypeEncounters, Actor: types.ActorRef{ID: uuid.New()}})
	require.ErrorIs(t, err, types.ErrOrganizationRequired)

	err = env.save.Execute(ctx, SavePreferenceInput{Scope: types.ScopeFilter{OrgID: orgID}, ListType: types.ListTypeEncounters})
	require.ErrorIs(t, err, ErrActorRequired)

	err = NewSavePreferenceCommand(PreferenceCommandConfig{}).Execute(ctx, SavePreferenceInput{})
	require.ErrorIs(t, err, types.ErrMissingPreferenceRepository)
}

func TestResetPreferenceCommand_FallsThroughTiers(t *testing.T) {
	ctx := context.Background()
	env := newPreferenceEnv(t)
	orgID := uuid.New()
	userID := uuid.New()
	owner := types.ActorRef{ID: uuid.New(), Type: types.OrgRoleOwner}
	user := types.ActorRef{ID: userID, Type: types.OrgRoleStaff}

	var orgPref, userPref types.ListPreference
	require.NoError(t, env.save.Execute(ctx, SavePreferenceInput{
		Scope:          types.ScopeFilter{OrgID: orgID},
		ListType:       types.ListTypeEncounters,
		VisibleColumns: []string{"created_at"},
		Actor:          owner,
		Result:         &orgPref,
	}))
	require.NoError(t, env.save.Execute(ctx, SavePreferenceInput{
		Scope:          types.ScopeFilter{OrgID: orgID},
		UserID:         userID,
		ListType:       types.ListTypeEncounters,
		VisibleColumns: []string{"patient__email"},
		Actor:          user,
		Result:         &userPref,
	}))

	reset := func(userID uuid.UUID, actor types.ActorRef) {
		require.NoError(t, env.reset.Execute(ctx, ResetPreferenceInput{
			Scope:    types.ScopeFilter{OrgID: orgID},
			UserID:   userID,
			ListType: types.ListTypeEncounters,
			Actor:    actor,
		}))
	}
	resolve := func() types.ListPreference {
		pref, err := env.resolver.Resolve(ctx, preferences.ResolveInput{UserID: userID, OrgID: orgID, ListType: types.ListTypeEncounters})
		require.NoError(t, err)
		return pref
	}

	require.Equal(t, userPref.ID, resolve().ID)

	reset(userID, user)
	require.Equal(t, orgPref.ID, resolve().ID)
	grants, err := env.perms.ListGrants(ctx, types.ObjectTypeListPreference, userPref.ID)
	require.NoError(t, err)
	require.Empty(t, grants)

	reset(userID, user)

	reset(uuid.Nil, owner)
	pref := resolve()
	require.Equal(t, types.PreferenceSourceDefault, pref.Source)
	require.False(t, pref.Persisted)

	verbs := make([]string, 0, len(env.sink.records))
	for _, rec := range env.sink.records {
		verbs = append(verbs, rec.Verb)
	}
	require.Equal(t, []string{
		types.VerbPreferenceSaved,
		types.VerbPreferenceSaved,
		types.VerbPreferenceReset,
		types.VerbPreferenceReset,
	}, verbs, "absent rows are reset silently")
}

func TestAttributeCommands(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	registry, err := attributes.NewRegistry(attributes.RegistryConfig{DB: db})
	require.NoError(t, err)
	sink := &recordingActivitySink{}
	cfg := AttributeCommandConfig{
		Registry:   registry,
		Activity:   sink,
		ScopeGuard: scope.NewGuard(nil, types.RolePolicy{}),
		Clock:      testsupport.FixedClock{T: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	define := NewDefineAttributeCommand(cfg)
	setValues := NewSetAttributeValuesCommand(cfg)
	orgID := uuid.New()
	admin := types.ActorRef{ID: uuid.New(), Type: types.OrgRoleAdmin}

	input := DefineAttributeInput{
		Scope:       types.ScopeFilter{OrgID: orgID},
		SubjectKind: types.SubjectKindEncounter,
		Name:        "Priority",
		DataType:    types.DataTypeEnum,
		Options: []types.EnumOptionInput{
			{Label: "High", Value: "high"},
			{Label: "Low", Value: "low"},
		},
		Actor: types.ActorRef{ID: uuid.New(), Type: types.OrgRoleStaff},
	}
	require.ErrorIs(t, define.Execute(ctx, input), types.ErrUnauthorizedScope)

	var def types.AttributeDefinition
	input.Actor = admin
	input.Result = &def
	require.NoError(t, define.Execute(ctx, input))
	require.Len(t, def.Options, 2)

	subjectID := uuid.New()
	var values []types.AttributeValue
	require.NoError(t, setValues.Execute(ctx, SetAttributeValuesInput{
		Scope:       types.ScopeFilter{OrgID: orgID},
		SubjectKind: types.SubjectKindEncounter,
		AttributeID: def.ID,
		SubjectID:   subjectID,
		Values:      []types.AttributeValueInput{{EnumValue: "low"}},
		Actor:       types.ActorRef{ID: uuid.New(), Type: types.OrgRoleStaff},
		Result:      &values,
	}))
	require.Len(t, values, 1)
	require.Equal(t, "Low", values[0].Enum.Label)

	err = setValues.Execute(ctx, SetAttributeValuesInput{
		Scope:       types.ScopeFilter{OrgID: orgID},
		SubjectKind: types.SubjectKindEncounter,
		AttributeID: def.ID,
		Actor:       admin,
	})
	require.ErrorIs(t, err, ErrSubjectIDRequired)

	require.Len(t, sink.records, 2)
	require.Equal(t, types.VerbAttributeDefined, sink.records[0].Verb)
	require.Equal(t, types.VerbAttributeValuesSet, sink.records[1].Verb)
	require.Equal(t, def.ID.String(), sink.records[1].ObjectID)
}

func TestActivityLogCommand(t *testing.T) {
	ctx := context.Background()
	sink := &recordingActivitySink{}
	var hooked []types.ActivityRecord
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cmd := NewActivityLogCommand(ActivityLogConfig{
		Sink: sink,
		Hooks: types.Hooks{
			AfterActivity: func(_ context.Context, rec types.ActivityRecord) {
				hooked = append(hooked, rec)
			},
		},
		Clock:      testsupport.FixedClock{T: at},
		ScopeGuard: scope.NewGuard(nil, types.RolePolicy{}),
	})
	orgID := uuid.New()
	userID := uuid.New()
	actor := types.ActorRef{ID: uuid.New(), Type: types.OrgRoleStaff}

	require.ErrorIs(t, cmd.Execute(ctx, ActivityLogInput{Verb: "list_view.exported"}), ErrActorRequired)
	require.ErrorIs(t, cmd.Execute(ctx, ActivityLogInput{Actor: actor, ListType: types.ListTypePatients}), ErrActivityVerbRequired)
	err := cmd.Execute(ctx, ActivityLogInput{Actor: actor, ListType: types.ListTypePatients, Verb: types.VerbPreferenceSaved})
	require.ErrorIs(t, err, ErrReservedActivityVerb)
	require.Equal(t, types.TextCodeReservedVerb, types.TextCode(err))
	require.ErrorIs(t, cmd.Execute(ctx, ActivityLogInput{Actor: actor, ListType: "invoice_list", Verb: "list_view.exported"}), types.ErrInvalidListType)
	require.ErrorIs(t, cmd.Execute(ctx, ActivityLogInput{Actor: actor, ListType: types.ListTypePatients, Verb: "list_view.exported"}), types.ErrOrganizationRequired)
	require.Empty(t, sink.records)

	require.NoError(t, cmd.Execute(ctx, ActivityLogInput{
		Actor:    actor,
		Scope:    types.ScopeFilter{OrgID: orgID},
		UserID:   userID,
		ListType: types.ListTypeEncounters,
		Verb:     " list_view.exported ",
		Data:     map[string]any{"format": "csv"},
	}))
	require.Len(t, sink.records, 1)
	require.Len(t, hooked, 1)
	rec := sink.records[0]
	require.Equal(t, "list_view.exported", rec.Verb)
	require.Equal(t, orgID, rec.OrgID)
	require.Equal(t, userID, rec.UserID)
	require.Equal(t, actor.ID, rec.ActorID)
	require.Equal(t, types.ObjectTypeListView, rec.ObjectType)
	require.Equal(t, string(types.ListTypeEncounters), rec.ObjectID)
	require.Equal(t, map[string]any{"format": "csv", "list_type": string(types.ListTypeEncounters)}, rec.Data)
	require.Equal(t, at, rec.OccurredAt)

	patient := types.ActorRef{ID: uuid.New(), Type: types.OrgRolePatient}
	require.NoError(t, cmd.Execute(ctx, ActivityLogInput{
		Actor:      patient,
		Scope:      types.ScopeFilter{OrgID: orgID},
		ListType:   types.ListTypePatients,
		Verb:       "list_view.printed",
		OccurredAt: at.Add(time.Hour),
	}))
	require.Equal(t, at.Add(time.Hour), sink.records[1].OccurredAt)

	failing := NewActivityLogCommand(ActivityLogConfig{Sink: failingActivitySink{err: errors.New("sink down")}})
	err = failing.Execute(ctx, ActivityLogInput{Actor: actor, Scope: types.ScopeFilter{OrgID: orgID}, ListType: types.ListTypePatients, Verb: "list_view.exported"})
	require.ErrorContains(t, err, "sink down")

	err = NewActivityLogCommand(ActivityLogConfig{}).Execute(ctx, ActivityLogInput{Verb: "x"})
	require.ErrorIs(t, err, types.ErrMissingActivitySink)
}

type failingActivitySink struct {
	err error
}

func (s failingActivitySink) Log(context.Context, types.ActivityRecord) error {
	return s.err
}

type preferenceEnv struct {
	repo     *preferences.Repository
	save     *SavePreferenceCommand
	reset    *ResetPreferenceCommand
	resolver *preferences.Resolver
	perms    *permissions.Registry
	sink     *recordingActivitySink
	events   []string
}

func newPreferenceEnv(t *testing.T, mutators ...func(*PreferenceCommandConfig)) *preferenceEnv {
	t.Helper()
	db := testsupport.NewDB(t)
	clock := &testsupport.StepClock{T: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Step: time.Second}
	repo, err := preferences.NewRepository(preferences.RepositoryConfig{DB: db, Clock: clock})
	require.NoError(t, err)
	resolver, err := preferences.NewResolver(preferences.ResolverConfig{Repository: repo})
	require.NoError(t, err)
	perms, err := permissions.NewRegistry(permissions.RegistryConfig{DB: db, Clock: clock})
	require.NoError(t, err)

	env := &preferenceEnv{
		repo:     repo,
		resolver: resolver,
		perms:    perms,
		sink:     &recordingActivitySink{},
	}
	cfg := PreferenceCommandConfig{
		Repository:  repo,
		Permissions: perms,
		Activity:    env.sink,
		Clock:       clock,
		Hooks: types.Hooks{
			AfterPreferenceChange: func(_ context.Context, evt types.PreferenceEvent) {
				env.events = append(env.events, evt.Action)
			},
		},
	}
	for _, mutate := range mutators {
		mutate(&cfg)
	}
	env.save = NewSavePreferenceCommand(cfg)
	env.reset = NewResetPreferenceCommand(cfg)
	return env
}

type recordingActivitySink struct {
	records []types.ActivityRecord
}

func (s *recordingActivitySink) Log(_ context.Context, record types.ActivityRecord) error {
	s.records = append(s.records, record)
	return nil
}

type stubFeatureGate struct {
	enabled bool
	err     error
	keys    []string
	chains  []featuregate.ScopeChain
}

func (s *stubFeatureGate) Enabled(_ context.Context, key string, opts ...featuregate.ResolveOption) (bool, error) {
	s.keys = append(s.keys, key)
	var req featuregate.ResolveRequest
	for _, opt := range opts {
		opt(&req)
	}
	if req.ScopeChain != nil {
		s.chains = append(s.chains, *req.ScopeChain)
	}
	if s.err != nil {
		return false, s.err
	}
	return s.enabled, nil
}
