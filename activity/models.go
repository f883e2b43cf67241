package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LogEntry models the persisted row in list_view_activity.
type LogEntry struct {
	bun.BaseModel `bun:"table:list_view_activity"`

	ID         uuid.UUID      `bun:",pk,type:uuid"`
	UserID     uuid.UUID      `bun:"user_id,type:uuid,nullzero"`
	ActorID    uuid.UUID      `bun:"actor_id,type:uuid,nullzero"`
	OrgID      uuid.UUID      `bun:"organization_id,type:uuid,nullzero"`
	Verb       string         `bun:"verb"`
	ObjectType string         `bun:"object_type"`
	ObjectID   string         `bun:"object_id"`
	Data       map[string]any `bun:"data,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at"`
}
