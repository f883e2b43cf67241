package activity

import (
	"context"
	"errors"

	"github.com/goliatone/go-masker"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
	"github.com/uptrace/bun"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RepositoryConfig wires the Bun-backed activity repository.
type RepositoryConfig struct {
	DB         *bun.DB
	Repository repository.Repository[*LogEntry]
	Clock      types.Clock
	IDGen      types.IDGenerator
	Masker     *masker.Masker
}

type activityStore interface {
	repository.Repository[*LogEntry]
}

// Repository persists activity logs and exposes query helpers.
type Repository struct {
	activityStore
	clock  types.Clock
	idGen  types.IDGenerator
	masker *masker.Masker
}

// NewRepository constructs a repository that implements both ActivitySink
// and ActivityRepository interfaces.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Repository == nil && cfg.DB == nil {
		return nil, errors.New("activity: db or repository required")
	}
	repo := cfg.Repository
	if repo == nil {
		repo = repository.NewRepository(cfg.DB, repository.ModelHandlers[*LogEntry]{
			NewRecord: func() *LogEntry { return &LogEntry{} },
			GetID: func(entry *LogEntry) uuid.UUID {
				if entry == nil {
					return uuid.Nil
				}
				return entry.ID
			},
			SetID: func(entry *LogEntry, id uuid.UUID) {
				if entry != nil {
					entry.ID = id
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
		activityStore: repo,
		clock:         clock,
		idGen:         idGen,
		masker:        cfg.Masker,
	}, nil
}

var (
	_ repository.Repository[*LogEntry] = (*Repository)(nil)
	_ types.ActivitySink               = (*Repository)(nil)
	_ types.ActivityRepository         = (*Repository)(nil)
)

// Log persists an activity record. The data payload is masked before it is
// written.
func (r *Repository) Log(ctx context.Context, record types.ActivityRecord) error {
	if record.Verb == "" {
		return errors.New("activity: verb required")
	}
	record = SanitizeRecord(r.masker, record)
	entry := toLogEntry(record)
	if entry.ID == uuid.Nil {
		entry.ID = r.idGen.UUID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.clock.Now()
	}
	_, err := r.Create(ctx, entry)
	return err
}

// ListActivity returns a newest-first page filtered by the supplied criteria.
func (r *Repository) ListActivity(ctx context.Context, filter types.ActivityFilter) (types.ActivityPage, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	rows, total, err := r.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.OrderExpr("created_at DESC").
			OrderExpr("id DESC").
			Limit(limit).
			Offset(offset)
		return applyActivityFilter(q, filter)
	})
	if err != nil {
		return types.ActivityPage{}, err
	}
	records := make([]types.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toActivityRecord(row))
	}
	return types.ActivityPage{
		Records:    records,
		Total:      total,
		NextOffset: offset + limit,
		HasMore:    offset+limit < total,
	}, nil
}

func applyActivityFilter(q *bun.SelectQuery, filter types.ActivityFilter) *bun.SelectQuery {
	if filter.OrgID != uuid.Nil {
		q = q.Where("organization_id = ?", filter.OrgID)
	}
	if filter.UserID != uuid.Nil && filter.ActorID != uuid.Nil {
		q = q.Where("(user_id = ? OR actor_id = ?)", filter.UserID, filter.ActorID)
	} else {
		if filter.UserID != uuid.Nil {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.ActorID != uuid.Nil {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
	}
	if len(filter.Verbs) > 0 {
		q = q.Where("verb IN (?)", bun.In(filter.Verbs))
	}
	if filter.ObjectType != "" {
		q = q.Where("object_type = ?", filter.ObjectType)
	}
	if filter.ObjectID != "" {
		q = q.Where("object_id = ?", filter.ObjectID)
	}
	if filter.Since != nil && !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil && !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", *filter.Until)
	}
	return q
}

func toLogEntry(record types.ActivityRecord) *LogEntry {
	return &LogEntry{
		ID:         record.ID,
		UserID:     record.UserID,
		ActorID:    record.ActorID,
		OrgID:      record.OrgID,
		Verb:       record.Verb,
		ObjectType: record.ObjectType,
		ObjectID:   record.ObjectID,
		Data:       cloneMap(record.Data),
		CreatedAt:  record.OccurredAt,
	}
}

func toActivityRecord(entry *LogEntry) types.ActivityRecord {
	if entry == nil {
		return types.ActivityRecord{}
	}
	return types.ActivityRecord{
		ID:         entry.ID,
		UserID:     entry.UserID,
		ActorID:    entry.ActorID,
		OrgID:      entry.OrgID,
		Verb:       entry.Verb,
		ObjectType: entry.ObjectType,
		ObjectID:   entry.ObjectID,
		Data:       cloneMap(entry.Data),
		OccurredAt: entry.CreatedAt,
	}
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
