package preferences

import (
	"context"
	"database/sql"
	"errors"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// RepositoryConfig wires dependencies for the Bun-backed preference store.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*Record]
	Clock      types.Clock
	IDGen      types.IDGenerator
}

type preferenceStore interface {
	repository.Repository[*Record]
}

// Repository implements types.PreferenceRepository.
type Repository struct {
	preferenceStore
	db    *bun.DB
	clock types.Clock
	idGen types.IDGenerator
}

// NewRepository constructs the default preference repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("preferences: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*Record]{
			NewRecord: func() *Record { return &Record{} },
			GetID: func(rec *Record) uuid.UUID {
				if rec == nil {
					return uuid.Nil
				}
				return rec.ID
			},
			SetID: func(rec *Record, id uuid.UUID) {
				if rec != nil {
					rec.ID = id
				}
			},
		})
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	idGen := cfg.IDGen
	if idGen == nil {
		idGen = types.UUIDGenerator{}
	}

	return &Repository{
		preferenceStore: repo,
		db:              cfg.DB,
		clock:           clock,
		idGen:           idGen,
	}, nil
}

var (
	_ repository.Repository[*Record] = (*Repository)(nil)
	_ types.PreferenceRepository     = (*Repository)(nil)
)

// FindPreference returns the row stored under key, or nil when none exists.
func (r *Repository) FindPreference(ctx context.Context, key types.PreferenceKey) (*types.ListPreference, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	rec, err := r.findRecord(ctx, r.idb(), key)
	if repository.IsRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainPtr(rec), nil
}

// UpsertPreference inserts the preference or updates the row already stored
// under its scope key. The insert relies on the partial unique indexes of the
// table, so concurrent saves for one key converge on a single row. The
// returned flag reports whether the row was created.
func (r *Repository) UpsertPreference(ctx context.Context, pref types.ListPreference) (*types.ListPreference, bool, error) {
	db := r.idb()
	if db == nil {
		return nil, false, errors.New("preferences: upsert requires bun DB")
	}
	return r.UpsertPreferenceTx(ctx, db, pref)
}

// UpsertPreferenceTx is UpsertPreference run against tx.
func (r *Repository) UpsertPreferenceTx(ctx context.Context, tx bun.IDB, pref types.ListPreference) (*types.ListPreference, bool, error) {
	key, err := normalizeKey(keyOf(pref))
	if err != nil {
		return nil, false, err
	}
	now := r.clock.Now()
	payload := fromDomain(pref)
	payload.ID = r.idGen.UUID()
	payload.UserID = key.UserID
	payload.CreatedAt = now
	payload.UpdatedAt = now
	if payload.CreatedBy == uuid.Nil {
		payload.CreatedBy = payload.UpdatedBy
	}

	_, err = tx.NewInsert().
		Model(payload).
		On(conflictTarget(key.Scope)).
		Set("visible_columns = EXCLUDED.visible_columns").
		Set("default_sort = EXCLUDED.default_sort").
		Set("saved_filters = EXCLUDED.saved_filters").
		Set("items_per_page = EXCLUDED.items_per_page").
		Set("updated_at = EXCLUDED.updated_at").
		Set("updated_by = EXCLUDED.updated_by").
		Exec(ctx)
	if err != nil {
		if types.IsUniqueViolation(err) {
			return nil, false, conflictError(err, key)
		}
		return nil, false, err
	}

	stored, err := r.findRecord(ctx, tx, key)
	if err != nil {
		return nil, false, err
	}
	return toDomainPtr(stored), stored.ID == payload.ID, nil
}

// CreatePreference inserts a new row without conflict handling. A second row
// for an existing scope key fails with a conflict error.
func (r *Repository) CreatePreference(ctx context.Context, pref types.ListPreference) (*types.ListPreference, error) {
	key, err := normalizeKey(keyOf(pref))
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	payload := fromDomain(pref)
	if payload.ID == uuid.Nil {
		payload.ID = r.idGen.UUID()
	}
	payload.UserID = key.UserID
	payload.CreatedAt = now
	payload.UpdatedAt = now
	if payload.CreatedBy == uuid.Nil {
		payload.CreatedBy = payload.UpdatedBy
	}
	created, err := r.Create(ctx, payload)
	if err != nil {
		if types.IsUniqueViolation(err) {
			return nil, conflictError(err, key)
		}
		return nil, err
	}
	return toDomainPtr(created), nil
}

// DeletePreference removes the row stored under key. Deleting an absent row
// is a no-op.
func (r *Repository) DeletePreference(ctx context.Context, key types.PreferenceKey) error {
	db := r.idb()
	if db == nil {
		return r.deleteRecord(ctx, nil, key)
	}
	return r.DeletePreferenceTx(ctx, db, key)
}

// DeletePreferenceTx is DeletePreference run against tx.
func (r *Repository) DeletePreferenceTx(ctx context.Context, tx bun.IDB, key types.PreferenceKey) error {
	if tx == nil {
		return errors.New("preferences: delete requires a transaction")
	}
	return r.deleteRecord(ctx, tx, key)
}

// RunInTx runs fn inside a transaction on the preference database.
func (r *Repository) RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	db := r.bunDB()
	if db == nil {
		return errors.New("preferences: transactions require bun DB")
	}
	return db.RunInTx(ctx, opts, fn)
}

func (r *Repository) deleteRecord(ctx context.Context, tx bun.IDB, key types.PreferenceKey) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	existing, err := r.findRecord(ctx, tx, key)
	if repository.IsRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if tx == nil {
		return r.Delete(ctx, existing)
	}
	return r.DeleteTx(ctx, tx, existing)
}

func (r *Repository) bunDB() *bun.DB {
	if r.db != nil {
		return r.db
	}
	if provider, ok := r.preferenceStore.(repository.DBProvider); ok {
		return provider.DB()
	}
	return nil
}

// idb returns the default query target, or nil when only a bare repository
// was configured.
func (r *Repository) idb() bun.IDB {
	if db := r.bunDB(); db != nil {
		return db
	}
	return nil
}

func (r *Repository) findRecord(ctx context.Context, tx bun.IDB, key types.PreferenceKey) (*Record, error) {
	criteria := func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("scope = ?", string(key.Scope)).
			Where("organization_id = ?", key.OrgID).
			Where("list_type = ?", string(key.ListType))
		if key.Scope == types.PreferenceScopeUser {
			q = q.Where("user_id = ?", key.UserID)
		} else {
			q = q.Where("user_id IS NULL")
		}
		return q.Limit(1)
	}
	var (
		rows []*Record
		err  error
	)
	if tx == nil {
		rows, _, err = r.List(ctx, criteria)
	} else {
		rows, _, err = r.ListTx(ctx, tx, criteria)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, repository.NewRecordNotFound()
	}
	return rows[0], nil
}

func keyOf(pref types.ListPreference) types.PreferenceKey {
	return types.PreferenceKey{
		Scope:    pref.Scope,
		UserID:   pref.UserID,
		OrgID:    pref.OrgID,
		ListType: pref.ListType,
	}
}

// normalizeKey validates key and clears the user of organization keys.
func normalizeKey(key types.PreferenceKey) (types.PreferenceKey, error) {
	if !key.Scope.Valid() {
		return key, types.ValidationError(types.ErrInvalidPreferenceScope, types.TextCodeInvalidScope, map[string]any{
			"scope": string(key.Scope),
		})
	}
	if key.OrgID == uuid.Nil {
		return key, types.ValidationError(types.ErrOrganizationRequired, types.TextCodeOrganizationRequired, nil)
	}
	listType, ok := types.ParseListType(string(key.ListType))
	if !ok {
		return key, types.ValidationError(types.ErrInvalidListType, types.TextCodeInvalidListType, map[string]any{
			"list_type": string(key.ListType),
		})
	}
	key.ListType = listType
	switch key.Scope {
	case types.PreferenceScopeUser:
		if key.UserID == uuid.Nil {
			return key, types.ValidationError(types.ErrUserIDRequired, types.TextCodeUserRequired, nil)
		}
	case types.PreferenceScopeOrganization:
		key.UserID = uuid.Nil
	}
	return key, nil
}

func conflictTarget(scope types.PreferenceScope) string {
	if scope == types.PreferenceScopeUser {
		return "CONFLICT (user_id, organization_id, list_type) WHERE scope = 'user' DO UPDATE"
	}
	return "CONFLICT (organization_id, list_type) WHERE scope = 'organization' AND user_id IS NULL DO UPDATE"
}

func conflictError(err error, key types.PreferenceKey) error {
	return types.ConflictError(err, types.TextCodePreferenceConflict, "list preference already exists", map[string]any{
		"scope":     string(key.Scope),
		"list_type": string(key.ListType),
	})
}
