// Package apperr defines the error kinds every operation reports to callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable error code
type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindBadRequest      Kind = "BAD_REQUEST"
	KindEditConflict    Kind = "EDIT_CONFLICT"
	KindInternal        Kind = "INTERNAL"
)

// Error is a tagged error returned by services
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConflictError is returned when a client's version token is stale. It
// carries the authoritative version and the current record so the client
// can offer to merge or overwrite.
type ConflictError struct {
	ServerVersion  string
	ServerSnapshot any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: record was modified by someone else (server version %s)", KindEditConflict, e.ServerVersion)
}

// Kind always reports EDIT_CONFLICT
func (e *ConflictError) Kind() Kind {
	return KindEditConflict
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// BadRequestf formats a BAD_REQUEST message
func BadRequestf(format string, args ...any) *Error {
	return BadRequest(fmt.Sprintf(format, args...))
}

// Wrap attaches a kind to an underlying error
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Internal wraps an unexpected failure
func Internal(msg string, err error) *Error {
	return Wrap(KindInternal, msg, err)
}

// KindOf returns the kind of the first tagged error in err's chain, or
// INTERNAL for untagged errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return KindEditConflict
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the client-facing message for err. Internal errors never
// expose their cause.
func Message(err error) string {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return "record was modified by someone else"
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal server error"
}
