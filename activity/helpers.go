package activity

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/thrivehealth/go-listviews/pkg/types"
)

// BuildRecord constructs an ActivityRecord for the actor acting inside scope.
// Metadata is copied so later caller mutations do not leak into the record.
func BuildRecord(actor types.ActorRef, scope types.ScopeFilter, verb, objectType, objectID string, metadata map[string]any) (types.ActivityRecord, error) {
	if actor.ID == uuid.Nil {
		return types.ActivityRecord{}, types.ErrActorRequired
	}
	verb = strings.TrimSpace(verb)
	if verb == "" {
		return types.ActivityRecord{}, errors.New("activity: verb required")
	}
	return types.ActivityRecord{
		ActorID:    actor.ID,
		OrgID:      scope.OrgID,
		Verb:       verb,
		ObjectType: strings.TrimSpace(objectType),
		ObjectID:   strings.TrimSpace(objectID),
		Data:       cloneMap(metadata),
	}, nil
}
