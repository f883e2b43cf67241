package types

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// Text codes attached to boundary errors.
const (
	TextCodeInvalidListType      = "INVALID_LIST_TYPE"
	TextCodeInvalidSortField     = "INVALID_SORT_FIELD"
	TextCodeInvalidScope         = "INVALID_PREFERENCE_SCOPE"
	TextCodeOrganizationRequired = "ORGANIZATION_REQUIRED"
	TextCodeUserRequired         = "USER_REQUIRED"
	TextCodeAttributeNotFound    = "ATTRIBUTE_NOT_FOUND"
	TextCodeAttributeInvalid     = "ATTRIBUTE_INVALID"
	TextCodeAttributeConflict    = "ATTRIBUTE_CONFLICT"
	TextCodePreferenceConflict   = "PREFERENCE_CONFLICT"
	TextCodeFeatureDisabled      = "FEATURE_DISABLED"
	TextCodeScopeDenied          = "SCOPE_DENIED"
	TextCodeReservedVerb         = "RESERVED_ACTIVITY_VERB"
)

// ValidationError wraps a sentinel with validation category metadata. The
// sentinel stays reachable through errors.Is.
func ValidationError(sentinel error, textCode string, metadata map[string]any) error {
	err := goerrors.Wrap(sentinel, goerrors.CategoryValidation, sentinel.Error()).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// NotFoundError wraps a sentinel with not-found category metadata.
func NotFoundError(sentinel error, textCode string, metadata map[string]any) error {
	err := goerrors.Wrap(sentinel, goerrors.CategoryNotFound, sentinel.Error()).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ConflictError wraps an integrity failure reported by the database. The
// source error stays reachable through errors.Unwrap.
func ConflictError(source error, textCode, message string, metadata map[string]any) error {
	err := goerrors.Wrap(source, goerrors.CategoryConflict, message).
		WithCode(goerrors.CodeConflict).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ForbiddenError wraps an authorization failure.
func ForbiddenError(source error, textCode string) error {
	return goerrors.Wrap(source, goerrors.CategoryAuthz, source.Error()).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(textCode)
}

// TextCode extracts the text code of a rich error, if any.
func TextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint failure from
// PostgreSQL or SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsDuplicatedKey(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
