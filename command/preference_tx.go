package command

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

// TransactionalPreferenceRepository is a preference store whose writes can
// join a caller's transaction.
type TransactionalPreferenceRepository interface {
	types.PreferenceRepository
	UpsertPreferenceTx(ctx context.Context, tx bun.IDB, pref types.ListPreference) (*types.ListPreference, bool, error)
	DeletePreferenceTx(ctx context.Context, tx bun.IDB, key types.PreferenceKey) error
}

// TransactionalPermissionRegistry is a permission registry whose grant
// writes can join a caller's transaction.
type TransactionalPermissionRegistry interface {
	types.PermissionRegistry
	AssignDefaultPreferencePermissionsTx(ctx context.Context, tx bun.IDB, pref types.ListPreference) error
	RevokeObjectPermissionsTx(ctx context.Context, tx bun.IDB, objectType string, objectID uuid.UUID) error
}

// preferenceWriter pairs preference rows with their object grants. When the
// repository, the registry and a transaction manager are all available, both
// writes commit or roll back together.
type preferenceWriter struct {
	repo        types.PreferenceRepository
	permissions types.PermissionRegistry
	txm         repository.TransactionManager
	logger      types.Logger
}

func newPreferenceWriter(cfg PreferenceCommandConfig) preferenceWriter {
	txm := cfg.Transactions
	if txm == nil {
		txm, _ = cfg.Repository.(repository.TransactionManager)
	}
	return preferenceWriter{
		repo:        cfg.Repository,
		permissions: cfg.Permissions,
		txm:         txm,
		logger:      safeLogger(cfg.Logger),
	}
}

func (w preferenceWriter) transactional() (TransactionalPreferenceRepository, TransactionalPermissionRegistry, bool) {
	if w.txm == nil || w.permissions == nil {
		return nil, nil, false
	}
	repo, ok := w.repo.(TransactionalPreferenceRepository)
	if !ok {
		return nil, nil, false
	}
	perms, ok := w.permissions.(TransactionalPermissionRegistry)
	if !ok {
		return nil, nil, false
	}
	return repo, perms, true
}

// save upserts pref and grants the default permissions when the row is new.
func (w preferenceWriter) save(ctx context.Context, pref types.ListPreference) (*types.ListPreference, bool, error) {
	if repo, perms, ok := w.transactional(); ok {
		var (
			saved   *types.ListPreference
			created bool
		)
		err := w.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			var err error
			saved, created, err = repo.UpsertPreferenceTx(ctx, tx, pref)
			if err != nil {
				return err
			}
			if !created {
				return nil
			}
			return perms.AssignDefaultPreferencePermissionsTx(ctx, tx, *saved)
		})
		if err != nil {
			return nil, false, err
		}
		return saved, created, nil
	}

	saved, created, err := w.repo.UpsertPreference(ctx, pref)
	if err != nil {
		return nil, false, err
	}
	if !created || w.permissions == nil {
		return saved, created, nil
	}
	if err := w.permissions.AssignDefaultPreferencePermissions(ctx, *saved); err != nil {
		// Without a shared transaction, drop the new row so a retry creates
		// it again and re-runs the grants.
		w.undoCreate(ctx, *saved)
		return nil, false, err
	}
	return saved, created, nil
}

// remove deletes the row stored under key together with the grants on id.
func (w preferenceWriter) remove(ctx context.Context, key types.PreferenceKey, id uuid.UUID) error {
	if repo, perms, ok := w.transactional(); ok {
		return w.txm.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := repo.DeletePreferenceTx(ctx, tx, key); err != nil {
				return err
			}
			return perms.RevokeObjectPermissionsTx(ctx, tx, types.ObjectTypeListPreference, id)
		})
	}

	if err := w.repo.DeletePreference(ctx, key); err != nil {
		return err
	}
	if w.permissions == nil {
		return nil
	}
	return w.permissions.RevokeObjectPermissions(ctx, types.ObjectTypeListPreference, id)
}

func (w preferenceWriter) undoCreate(ctx context.Context, pref types.ListPreference) {
	if err := w.permissions.RevokeObjectPermissions(ctx, types.ObjectTypeListPreference, pref.ID); err != nil {
		w.logger.Error("list preference grant rollback failed", err, "preference_id", pref.ID.String())
	}
	if err := w.repo.DeletePreference(ctx, keyOfPreference(pref)); err != nil {
		w.logger.Error("list preference rollback failed", err, "preference_id", pref.ID.String())
	}
}

func keyOfPreference(pref types.ListPreference) types.PreferenceKey {
	return types.PreferenceKey{
		Scope:    pref.Scope,
		UserID:   pref.UserID,
		OrgID:    pref.OrgID,
		ListType: pref.ListType,
	}
}
