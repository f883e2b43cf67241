package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thrivehealth/go-listviews/attributes"
	"github.com/thrivehealth/go-listviews/columns"
	"github.com/thrivehealth/go-listviews/internal/testsupport"
	"github.com/thrivehealth/go-listviews/listquery"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/thrivehealth/go-listviews/preferences"
	"github.com/thrivehealth/go-listviews/scope"
	"github.com/thrivehealth/go-listviews/subjects"
	"github.com/uptrace/bun"
)

func TestResolvePreferenceQuery_DelegatesToResolver(t *testing.T) {
	resolver := &fakeResolver{pref: types.ListPreference{DefaultSort: "created_at"}}
	query := NewResolvePreferenceQuery(resolver, nil)
	orgID := uuid.New()
	userID := uuid.New()

	result, err := query.Query(context.Background(), ResolvePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: orgID},
		UserID:   userID,
		ListType: types.ListTypePatients,
	})
	require.NoError(t, err)
	require.Equal(t, "created_at", result.DefaultSort)
	require.Equal(t, preferences.ResolveInput{UserID: userID, OrgID: orgID, ListType: types.ListTypePatients}, resolver.input)

	_, err = NewResolvePreferenceQuery(nil, nil).Query(context.Background(), ResolvePreferenceInput{})
	require.ErrorIs(t, err, types.ErrMissingPreferenceResolver)
}

func TestResolvePreferenceQuery_UsesGuardScope(t *testing.T) {
	forced := uuid.New()
	guard := scope.NewGuard(types.ScopeResolverFunc(func(context.Context, types.ActorRef, types.ScopeFilter) (types.ScopeFilter, error) {
		return types.ScopeFilter{OrgID: forced}, nil
	}), nil)
	resolver := &fakeResolver{}
	_, err := NewResolvePreferenceQuery(resolver, guard).Query(context.Background(), ResolvePreferenceInput{
		Scope:    types.ScopeFilter{OrgID: uuid.New()},
		ListType: types.ListTypeEncounters,
	})
	require.NoError(t, err)
	require.Equal(t, forced, resolver.input.OrgID)
}

func TestAvailableColumnsQuery(t *testing.T) {
	env := newListEnv(t)
	priority := env.enumAttr(t, "Priority", "High", "Low")

	cols, err := NewAvailableColumnsQuery(env.catalog, nil).Query(env.ctx, AvailableColumnsInput{
		Scope:    types.ScopeFilter{OrgID: env.org},
		ListType: types.ListTypePatients,
	})
	require.NoError(t, err)
	last := cols[len(cols)-1]
	require.Equal(t, priority.ID.String(), last.Value)
	require.True(t, last.IsCustom)

	fixedOnly, err := NewAvailableColumnsQuery(env.catalog, nil).Query(env.ctx, AvailableColumnsInput{ListType: types.ListTypePatients})
	require.NoError(t, err)
	require.Len(t, fixedOnly, len(cols)-1)
}

func TestListRecordsQuery_UsesResolvedPreference(t *testing.T) {
	env := newListEnv(t)
	priority := env.enumAttr(t, "Priority", "High", "Low")
	ann := env.patient(t, "Ann")
	bob := env.patient(t, "Bob")
	cid := env.patient(t, "Cid")
	env.setEnum(t, priority, ann.ID, "low")
	env.setEnum(t, priority, bob.ID, "high")

	_, _, err := env.prefs.UpsertPreference(env.ctx, types.ListPreference{
		Scope:          types.PreferenceScopeOrganization,
		OrgID:          env.org,
		ListType:       types.ListTypePatients,
		VisibleColumns: []string{"first_name", priority.ID.String()},
		DefaultSort:    "-first_name",
		SavedFilters: map[string]any{
			"custom_attributes": map[string]any{
				priority.ID.String(): map[string]any{"values": []any{"high", "low"}},
			},
		},
		ItemsPerPage: 1,
	})
	require.NoError(t, err)

	result, err := env.list.Query(env.ctx, ListRecordsInput{
		Scope:    types.ScopeFilter{OrgID: env.org},
		ListType: types.ListTypePatients,
	})
	require.NoError(t, err)
	require.Equal(t, types.PreferenceSourceOrganization, result.Preference.Source)
	require.Equal(t, "-first_name", result.Sort)
	require.Equal(t, 2, result.Page.Total, "Cid has no priority")
	require.Len(t, result.Page.Rows, 1)
	require.True(t, result.Page.HasMore)
	require.Equal(t, bob.ID.String(), result.Page.Rows[0]["id"])
	require.Equal(t, "High", result.Page.Rows[0][columns.AnnotationName(priority.ID)])

	result, err = env.list.Query(env.ctx, ListRecordsInput{
		Scope:    types.ScopeFilter{OrgID: env.org},
		ListType: types.ListTypePatients,
		Filters:  map[string]any{},
		Sort:     "first_name",
		PerPage:  10,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Page.Total, "request filters replace saved filters")
	require.Equal(t, []string{ann.ID.String(), bob.ID.String(), cid.ID.String()}, rowIDs(result.Page))
	require.Empty(t, result.Filters)
}

func TestListRecordsQuery_FallsBackOnInvalidSort(t *testing.T) {
	env := newListEnv(t)
	env.patient(t, "Ann")

	result, err := env.list.Query(env.ctx, ListRecordsInput{
		Scope:    types.ScopeFilter{OrgID: env.org},
		ListType: types.ListTypePatients,
		Sort:     "-shoe_size",
	})
	require.NoError(t, err)
	require.Equal(t, types.DefaultSort, result.Sort)
	require.Equal(t, []string{"-shoe_size"}, result.Page.Diagnostics.Fields(types.ClauseStageSort))
	require.Len(t, result.Page.Rows, 1)
}

func TestListRecordsQuery_ReportsSkippedClauses(t *testing.T) {
	env := newListEnv(t)
	ann := env.patient(t, "Ann")
	env.patient(t, "Bob")
	missing := uuid.New().String()

	result, err := env.list.Query(env.ctx, ListRecordsInput{
		Scope:    types.ScopeFilter{OrgID: env.org},
		ListType: types.ListTypePatients,
		Columns:  []string{"first_name", missing},
		Filters: map[string]any{
			"model_fields": map[string]any{
				"first_name": "Ann",
				"shoe_size":  "9",
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{ann.ID.String()}, rowIDs(result.Page))
	require.Equal(t, []string{missing}, result.Page.Diagnostics.Fields(types.ClauseStageAnnotate))
	require.Equal(t, []string{"shoe_size"}, result.Page.Diagnostics.Fields(types.ClauseStageFilter))
	require.Equal(t, []string{"first_name", missing}, result.Columns)
}

func TestListRecordsQuery_Validation(t *testing.T) {
	env := newListEnv(t)

	_, err := env.list.Query(env.ctx, ListRecordsInput{Scope: types.ScopeFilter{OrgID: env.org}, ListType: "invoice_list"})
	require.ErrorIs(t, err, types.ErrInvalidListType)

	_, err = env.list.Query(env.ctx, ListRecordsInput{ListType: types.ListTypePatients})
	require.ErrorIs(t, err, types.ErrOrganizationRequired)

	_, err = NewListRecordsQuery(ListRecordsConfig{}).Query(env.ctx, ListRecordsInput{})
	require.ErrorIs(t, err, types.ErrMissingQueryEngine)

	denied := errors.New("denied")
	guarded := NewListRecordsQuery(ListRecordsConfig{
		Engine:   env.engine,
		Resolver: env.resolver,
		ScopeGuard: scope.NewGuard(nil, types.AuthorizationPolicyFunc(func(context.Context, types.PolicyCheck) error {
			return denied
		})),
	})
	_, err = guarded.Query(env.ctx, ListRecordsInput{Scope: types.ScopeFilter{OrgID: env.org}, ListType: types.ListTypePatients})
	require.ErrorIs(t, err, denied)
}

func TestActivityFeedQuery_ScopesToResolvedOrganization(t *testing.T) {
	repo := &fakeActivityRepo{}
	orgID := uuid.New()
	query := NewActivityFeedQuery(repo, scope.NewGuard(nil, types.RolePolicy{}))

	_, err := query.Query(context.Background(), ActivityFeedInput{
		Actor: types.ActorRef{ID: uuid.New(), Type: types.OrgRoleStaff},
		Scope: types.ScopeFilter{OrgID: orgID},
	})
	require.ErrorIs(t, err, types.ErrUnauthorizedScope)

	_, err = query.Query(context.Background(), ActivityFeedInput{
		Actor:  types.ActorRef{ID: uuid.New(), Type: types.OrgRoleOwner},
		Scope:  types.ScopeFilter{OrgID: orgID},
		Filter: types.ActivityFilter{OrgID: uuid.New(), Verbs: []string{types.VerbPreferenceSaved}},
	})
	require.NoError(t, err)
	require.Equal(t, orgID, repo.filter.OrgID)
	require.Equal(t, []string{types.VerbPreferenceSaved}, repo.filter.Verbs)

	_, err = NewActivityFeedQuery(nil, nil).Query(context.Background(), ActivityFeedInput{})
	require.ErrorIs(t, err, types.ErrMissingActivityRepository)
}

type listEnv struct {
	ctx      context.Context
	db       *bun.DB
	org      uuid.UUID
	registry *attributes.Registry
	engine   *listquery.Engine
	prefs    *preferences.Repository
	resolver *preferences.Resolver
	catalog  *columns.Resolver
	list     *ListRecordsQuery
}

func newListEnv(t *testing.T) *listEnv {
	t.Helper()
	db := testsupport.NewDB(t)
	registry, err := attributes.NewRegistry(attributes.RegistryConfig{DB: db})
	require.NoError(t, err)
	engine, err := listquery.NewEngine(listquery.Config{DB: db, Attributes: registry})
	require.NoError(t, err)
	prefs, err := preferences.NewRepository(preferences.RepositoryConfig{DB: db})
	require.NoError(t, err)
	resolver, err := preferences.NewResolver(preferences.ResolverConfig{Repository: prefs})
	require.NoError(t, err)
	catalog := columns.NewResolver(registry, nil)
	return &listEnv{
		ctx:      context.Background(),
		db:       db,
		org:      uuid.New(),
		registry: registry,
		engine:   engine,
		prefs:    prefs,
		resolver: resolver,
		catalog:  catalog,
		list: NewListRecordsQuery(ListRecordsConfig{
			Engine:   engine,
			Resolver: resolver,
			Columns:  catalog,
		}),
	}
}

func (e *listEnv) patient(t *testing.T, firstName string) subjects.Patient {
	t.Helper()
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	p := subjects.Patient{
		ID:        uuid.New(),
		OrgID:     e.org,
		FirstName: firstName,
		Email:     firstName + "@example.com",
		CreatedAt: created,
		UpdatedAt: created,
	}
	_, err := e.db.NewInsert().Model(&p).Exec(e.ctx)
	require.NoError(t, err)
	return p
}

func (e *listEnv) enumAttr(t *testing.T, name string, labels ...string) types.AttributeDefinition {
	t.Helper()
	opts := make([]types.EnumOptionInput, 0, len(labels))
	for _, label := range labels {
		opts = append(opts, types.EnumOptionInput{Label: label})
	}
	def, err := e.registry.CreateAttribute(e.ctx, types.AttributeInput{
		Scope:    types.SubjectScope{OrgID: e.org, Kind: types.SubjectKindPatient},
		Name:     name,
		DataType: types.DataTypeEnum,
		Options:  opts,
	})
	require.NoError(t, err)
	return *def
}

func (e *listEnv) setEnum(t *testing.T, attr types.AttributeDefinition, subjectID uuid.UUID, value string) {
	t.Helper()
	_, err := e.registry.SetValues(e.ctx, attr.Scope(), attr.ID, subjectID, []types.AttributeValueInput{{EnumValue: value}})
	require.NoError(t, err)
}

func rowIDs(page listquery.Page) []string {
	out := make([]string, 0, len(page.Rows))
	for _, row := range page.Rows {
		id, _ := row["id"].(string)
		out = append(out, id)
	}
	return out
}

type fakeResolver struct {
	input preferences.ResolveInput
	pref  types.ListPreference
}

func (f *fakeResolver) Resolve(_ context.Context, input preferences.ResolveInput) (types.ListPreference, error) {
	f.input = input
	return f.pref, nil
}

type fakeActivityRepo struct {
	filter types.ActivityFilter
}

func (f *fakeActivityRepo) ListActivity(_ context.Context, filter types.ActivityFilter) (types.ActivityPage, error) {
	f.filter = filter
	return types.ActivityPage{}, nil
}
