package types

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ScopeFilter carries the organization scoping used by commands/queries.
type ScopeFilter struct {
	OrgID uuid.UUID
}

// IsZero reports whether no organization was supplied.
func (s ScopeFilter) IsZero() bool {
	return s.OrgID == uuid.Nil
}

// ActorRef identifies who is initiating a command or query. Type carries the
// actor's organization role (owner, admin, staff, patient).
type ActorRef struct {
	ID   uuid.UUID
	Type string
}

// Pagination supports list pagination. Page is 1-based.
type Pagination struct {
	Page    int
	PerPage int
}

// PreferenceEvent signals list preference mutations so downstream systems can
// invalidate caches or push notifications.
type PreferenceEvent struct {
	PreferenceID uuid.UUID
	UserID       uuid.UUID
	Scope        ScopeFilter
	ListType     ListType
	Level        PreferenceScope
	Action       string
	ActorID      uuid.UUID
	OccurredAt   time.Time
}

// AttributeEvent is emitted when a custom attribute definition or its values
// change.
type AttributeEvent struct {
	AttributeID uuid.UUID
	SubjectID   uuid.UUID
	Scope       ScopeFilter
	SubjectKind SubjectKind
	Action      string
	ActorID     uuid.UUID
	OccurredAt  time.Time
}

// Hooks groups optional callbacks invoked after key workflows complete.
type Hooks struct {
	AfterPreferenceChange func(context.Context, PreferenceEvent)
	AfterAttributeChange  func(context.Context, AttributeEvent)
	AfterActivity         func(context.Context, ActivityRecord)
}

// ActivityRecord describes audit sink inputs and is shared across sink and
// query layers.
type ActivityRecord struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ActorID    uuid.UUID
	OrgID      uuid.UUID
	Verb       string
	ObjectType string
	ObjectID   string
	Data       map[string]any
	OccurredAt time.Time
}

// Activity verbs recorded by the commands.
const (
	VerbPreferenceSaved    = "list_preference.saved"
	VerbPreferenceReset    = "list_preference.reset"
	VerbAttributeDefined   = "custom_attribute.defined"
	VerbAttributeValuesSet = "custom_attribute.values_set"
)

// ObjectTypeCustomAttribute is the object type recorded on attribute activity.
const ObjectTypeCustomAttribute = "custom_attribute"

// ObjectTypeListView is the object type of host-reported list view activity.
// The object id is the list type.
const ObjectTypeListView = "list_view"

// ReservedVerb reports whether verb is recorded by the commands themselves.
func ReservedVerb(verb string) bool {
	switch verb {
	case VerbPreferenceSaved, VerbPreferenceReset, VerbAttributeDefined, VerbAttributeValuesSet:
		return true
	default:
		return false
	}
}

// ActivitySink is the minimal DI contract for emitting audit records.
type ActivitySink interface {
	Log(context.Context, ActivityRecord) error
}

// ActivityFilter narrows audit feed queries.
type ActivityFilter struct {
	OrgID      uuid.UUID
	UserID     uuid.UUID
	ActorID    uuid.UUID
	Verbs      []string
	ObjectType string
	ObjectID   string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// ActivityPage wraps a page of audit records.
type ActivityPage struct {
	Records    []ActivityRecord
	Total      int
	NextOffset int
	HasMore    bool
}

// ActivityRepository exposes read-side access to the audit trail.
type ActivityRepository interface {
	ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}

// Clock abstracts time retrieval for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts UUID creation.
type IDGenerator interface {
	UUID() uuid.UUID
}

// Logger captures basic logging hooks used by the service.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, err error, fields ...any)
}

// SystemClock defers to time.Now for production usage.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator produces UUIDv4 identifiers.
type UUIDGenerator struct{}

// UUID returns a randomly generated UUID.
func (UUIDGenerator) UUID() uuid.UUID { return uuid.New() }

// NopLogger discards all log lines.
type NopLogger struct{}

// Debug implements Logger.
func (NopLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NopLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NopLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NopLogger) Error(string, error, ...any) {}

var (
	// ErrActorRequired indicates an actor reference was not supplied.
	ErrActorRequired = errors.New("go-listviews: actor reference required")
	// ErrUserIDRequired indicates a user identifier was omitted.
	ErrUserIDRequired = errors.New("go-listviews: user id required")
	// ErrOrganizationRequired indicates the organization scope was omitted.
	ErrOrganizationRequired = errors.New("go-listviews: organization required")
	// ErrInvalidListType reports a list type outside the catalog.
	ErrInvalidListType = errors.New("go-listviews: invalid list type")
	// ErrInvalidSubjectKind reports a subject kind without a registered catalog.
	ErrInvalidSubjectKind = errors.New("go-listviews: invalid subject kind")
	// ErrSubjectMismatch reports a query built for a different subject kind.
	ErrSubjectMismatch = errors.New("go-listviews: query subject does not match scope")
	// ErrInvalidPreferenceScope reports an unknown preference scope.
	ErrInvalidPreferenceScope = errors.New("go-listviews: invalid preference scope")
	// ErrInvalidSortField reports a sort field outside the available columns.
	ErrInvalidSortField = errors.New("go-listviews: invalid sort field")
	// ErrAttributeNotFound is returned for unknown attributes and for attributes
	// owned by a different organization or subject kind.
	ErrAttributeNotFound = errors.New("go-listviews: custom attribute not found")
	// ErrAttributeNameRequired indicates a custom attribute definition lacks a name.
	ErrAttributeNameRequired = errors.New("go-listviews: custom attribute name required")
	// ErrInvalidDataType reports an unsupported custom attribute data type.
	ErrInvalidDataType = errors.New("go-listviews: invalid custom attribute data type")
	// ErrEnumOptionNotFound reports a value referencing an option of another attribute.
	ErrEnumOptionNotFound = errors.New("go-listviews: enum option not found")
	// ErrAttributeValueType reports a value that does not match the attribute data type.
	ErrAttributeValueType = errors.New("go-listviews: value does not match attribute data type")
	// ErrSingleValuedAttribute reports more than one value for a single-valued attribute.
	ErrSingleValuedAttribute = errors.New("go-listviews: attribute accepts a single value")
	// ErrUserPreferencesDisabled indicates personal list preferences are gated off.
	ErrUserPreferencesDisabled = errors.New("go-listviews: user list preferences disabled")
	// ErrServiceNotReady indicates the service has not been properly configured.
	ErrServiceNotReady = errors.New("go-listviews: service not ready")
	// ErrMissingAttributeRegistry occurs when no attribute registry was supplied.
	ErrMissingAttributeRegistry = errors.New("go-listviews: missing attribute registry")
	// ErrMissingPreferenceRepository occurs when preference commands or queries lack storage.
	ErrMissingPreferenceRepository = errors.New("go-listviews: missing preference repository")
	// ErrMissingPreferenceResolver occurs when preference queries lack a resolver.
	ErrMissingPreferenceResolver = errors.New("go-listviews: missing preference resolver")
	// ErrMissingPermissionRegistry occurs when no permission registry was supplied.
	ErrMissingPermissionRegistry = errors.New("go-listviews: missing permission registry")
	// ErrMissingActivitySink occurs when the activity log command lacks a sink.
	ErrMissingActivitySink = errors.New("go-listviews: missing activity sink")
	// ErrMissingActivityRepository occurs when the activity feed lacks storage.
	ErrMissingActivityRepository = errors.New("go-listviews: missing activity repository")
	// ErrMissingQueryEngine occurs when list queries lack the query engine.
	ErrMissingQueryEngine = errors.New("go-listviews: missing query engine")
)
