package command

import (
	"errors"

	"github.com/thrivehealth/go-listviews/pkg/types"
)

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = types.ErrActorRequired
	// ErrUserIDRequired indicates a user-scoped command omitted the user.
	ErrUserIDRequired = types.ErrUserIDRequired
	// ErrActivityVerbRequired indicates an activity log entry is missing a verb.
	ErrActivityVerbRequired = errors.New("go-listviews: activity verb required")
	// ErrReservedActivityVerb indicates a host tried to log a verb the
	// commands record themselves.
	ErrReservedActivityVerb = errors.New("go-listviews: activity verb is reserved")
	// ErrAttributeIDRequired indicates a value command omitted the attribute.
	ErrAttributeIDRequired = errors.New("go-listviews: attribute id required")
	// ErrSubjectIDRequired indicates a value command omitted the subject record.
	ErrSubjectIDRequired = errors.New("go-listviews: subject id required")
)
