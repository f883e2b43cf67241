package preferences

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/thrivehealth/go-listviews/internal/testsupport"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

func TestPreferenceRepository_UpsertFindDelete(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)
	clock := &testsupport.StepClock{T: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Step: time.Minute}
	repo, err := NewRepository(RepositoryConfig{DB: db, Clock: clock})
	require.NoError(t, err)

	orgID := uuid.New()
	userID := uuid.New()
	actor := uuid.New()

	first, created, err := repo.UpsertPreference(ctx, types.ListPreference{
		Scope:          types.PreferenceScopeUser,
		UserID:         userID,
		OrgID:          orgID,
		ListType:       types.ListTypeEncounters,
		VisibleColumns: []string{"patient__first_name", "created_at"},
		DefaultSort:    "-created_at",
		SavedFilters: map[string]any{
			"model_fields": map[string]any{"active": true},
		},
		ItemsPerPage: 50,
		UpdatedBy:    actor,
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, types.PreferenceSourceUser, first.Source)
	require.True(t, first.Persisted)
	require.Equal(t, actor, first.CreatedBy)
	require.Equal(t, map[string]any{"active": true}, first.SavedFilters["model_fields"])

	second, created, err := repo.UpsertPreference(ctx, types.ListPreference{
		Scope:          types.PreferenceScopeUser,
		UserID:         userID,
		OrgID:          orgID,
		ListType:       types.ListTypeEncounters,
		VisibleColumns: []string{"status"},
		DefaultSort:    "status",
		ItemsPerPage:   10,
		UpdatedBy:      uuid.New(),
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, []string{"status"}, second.VisibleColumns)
	require.Equal(t, 10, second.ItemsPerPage)
	require.Equal(t, actor, second.CreatedBy)
	require.True(t, second.CreatedAt.Equal(first.CreatedAt))
	require.True(t, second.UpdatedAt.After(first.UpdatedAt))
	require.Empty(t, second.SavedFilters)

	orgPref, created, err := repo.UpsertPreference(ctx, types.ListPreference{
		Scope:          types.PreferenceScopeOrganization,
		UserID:         userID,
		OrgID:          orgID,
		ListType:       types.ListTypeEncounters,
		VisibleColumns: []string{"created_at"},
		DefaultSort:    "created_at",
		ItemsPerPage:   25,
	})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, uuid.Nil, orgPref.UserID)
	require.Equal(t, types.PreferenceSourceOrganization, orgPref.Source)

	found, err := repo.FindPreference(ctx, types.PreferenceKey{
		Scope:    types.PreferenceScopeUser,
		UserID:   userID,
		OrgID:    orgID,
		ListType: types.ListTypeEncounters,
	})
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, second.ID, found.ID)

	missing, err := repo.FindPreference(ctx, types.PreferenceKey{
		Scope:    types.PreferenceScopeUser,
		UserID:   uuid.New(),
		OrgID:    orgID,
		ListType: types.ListTypeEncounters,
	})
	require.NoError(t, err)
	require.Nil(t, missing)

	userKey := types.PreferenceKey{Scope: types.PreferenceScopeUser, UserID: userID, OrgID: orgID, ListType: types.ListTypeEncounters}
	require.NoError(t, repo.DeletePreference(ctx, userKey))
	require.NoError(t, repo.DeletePreference(ctx, userKey), "reset is idempotent")
	found, err = repo.FindPreference(ctx, userKey)
	require.NoError(t, err)
	require.Nil(t, found)

	found, err = repo.FindPreference(ctx, types.PreferenceKey{Scope: types.PreferenceScopeOrganization, OrgID: orgID, ListType: types.ListTypeEncounters})
	require.NoError(t, err)
	require.Equal(t, orgPref.ID, found.ID)
}

func TestPreferenceRepository_StoresExplicitEmptyValues(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(RepositoryConfig{DB: testsupport.NewDB(t)})
	require.NoError(t, err)

	orgID := uuid.New()
	saved, _, err := repo.UpsertPreference(ctx, types.ListPreference{
		Scope:          types.PreferenceScopeOrganization,
		OrgID:          orgID,
		ListType:       types.ListTypePatients,
		VisibleColumns: []string{},
		DefaultSort:    "",
		ItemsPerPage:   25,
	})
	require.NoError(t, err)
	require.NotNil(t, saved.VisibleColumns)
	require.Empty(t, saved.VisibleColumns)
	require.Equal(t, "", saved.DefaultSort)
	require.NotNil(t, saved.SavedFilters)
}

func TestPreferenceRepository_UniquenessConstraints(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(RepositoryConfig{DB: testsupport.NewDB(t)})
	require.NoError(t, err)

	orgID := uuid.New()
	userID := uuid.New()
	userPref := types.ListPreference{
		Scope:        types.PreferenceScopeUser,
		UserID:       userID,
		OrgID:        orgID,
		ListType:     types.ListTypeEncounters,
		ItemsPerPage: 25,
	}
	_, err = repo.CreatePreference(ctx, userPref)
	require.NoError(t, err)
	_, err = repo.CreatePreference(ctx, userPref)
	require.Error(t, err)
	require.Equal(t, types.TextCodePreferenceConflict, types.TextCode(err))

	other := userPref
	other.UserID = uuid.New()
	_, err = repo.CreatePreference(ctx, other)
	require.NoError(t, err, "a different user may hold their own row")

	orgPref := types.ListPreference{
		Scope:        types.PreferenceScopeOrganization,
		OrgID:        orgID,
		ListType:     types.ListTypeEncounters,
		ItemsPerPage: 25,
	}
	_, err = repo.CreatePreference(ctx, orgPref)
	require.NoError(t, err)
	_, err = repo.CreatePreference(ctx, orgPref)
	require.Error(t, err)
	require.Equal(t, types.TextCodePreferenceConflict, types.TextCode(err))

	orgPref.ListType = types.ListTypePatients
	_, err = repo.CreatePreference(ctx, orgPref)
	require.NoError(t, err)
}

func TestPreferenceRepository_ScopeUserPairingIsEnforced(t *testing.T) {
	ctx := context.Background()
	db := testsupport.NewDB(t)

	_, err := db.NewInsert().Model(&Record{
		ID:             uuid.New(),
		Scope:          string(types.PreferenceScopeOrganization),
		UserID:         uuid.New(),
		OrgID:          uuid.New(),
		ListType:       string(types.ListTypeEncounters),
		VisibleColumns: []string{},
		SavedFilters:   map[string]any{},
		ItemsPerPage:   25,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}).Exec(ctx)
	require.Error(t, err)

	_, err = db.NewInsert().Model(&Record{
		ID:             uuid.New(),
		Scope:          string(types.PreferenceScopeUser),
		OrgID:          uuid.New(),
		ListType:       string(types.ListTypeEncounters),
		VisibleColumns: []string{},
		SavedFilters:   map[string]any{},
		ItemsPerPage:   25,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}).Exec(ctx)
	require.Error(t, err)
}

func TestPreferenceRepository_ValidatesKeys(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(RepositoryConfig{DB: testsupport.NewDB(t)})
	require.NoError(t, err)
	orgID := uuid.New()

	_, err = repo.FindPreference(ctx, types.PreferenceKey{Scope: types.PreferenceScopeUser, OrgID: orgID, ListType: types.ListTypeEncounters})
	require.ErrorIs(t, err, types.ErrUserIDRequired)

	_, err = repo.FindPreference(ctx, types.PreferenceKey{Scope: types.PreferenceScopeOrganization, OrgID: orgID, ListType: "invoice_list"})
	require.ErrorIs(t, err, types.ErrInvalidListType)

	_, err = repo.FindPreference(ctx, types.PreferenceKey{Scope: "team", OrgID: orgID, ListType: types.ListTypeEncounters})
	require.ErrorIs(t, err, types.ErrInvalidPreferenceScope)

	err = repo.DeletePreference(ctx, types.PreferenceKey{Scope: types.PreferenceScopeOrganization, ListType: types.ListTypeEncounters})
	require.ErrorIs(t, err, types.ErrOrganizationRequired)
}

func TestPreferenceRepository_RequiresStorage(t *testing.T) {
	_, err := NewRepository(RepositoryConfig{})
	require.Error(t, err)
}
