package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrProviderFailure = errors.New("provider failure")
)

// Error carries a taxonomy kind (one of the sentinels above) together with a
// human readable message and the offending ids, if any.
type Error struct {
	Kind    error
	Message string
	IDs     []string
}

func (e *Error) Error() string {
	if len(e.IDs) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.IDs, ", "))
}

// Unwrap lets errors.Is match the kind sentinel.
func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound reports that the given ids of entity do not exist.
func NotFound(entity string, ids ...string) *Error {
	return &Error{Kind: ErrNotFound, Message: entity + " not found", IDs: ids}
}

// Validation reports malformed input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationIDs reports malformed input that references the given ids.
func ValidationIDs(message string, ids ...string) *Error {
	return &Error{Kind: ErrValidation, Message: message, IDs: ids}
}

// Conflict reports a duplicate unique key.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

// ProviderFailure wraps an error returned by an external generation call.
func ProviderFailure(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProviderFailure, provider, err)
}

// IDsOf returns the ids attached to err, if it is (or wraps) an *Error.
func IDsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.IDs
	}
	return nil
}
