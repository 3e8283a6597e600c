// Package apperrors is the error taxonomy shared by services and handlers.
package apperrors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindInvalidState
	KindInvalidInput
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a user facing message and the kind used to pick the HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return newf(KindNotFound, format, args...)
}

func Forbidden(format string, args ...interface{}) error {
	return newf(KindForbidden, format, args...)
}

func Unauthorized(format string, args ...interface{}) error {
	return newf(KindUnauthorized, format, args...)
}

func InvalidState(format string, args ...interface{}) error {
	return newf(KindInvalidState, format, args...)
}

func InvalidInput(format string, args ...interface{}) error {
	return newf(KindInvalidInput, format, args...)
}

func Conflict(format string, args ...interface{}) error {
	return newf(KindConflict, format, args...)
}

// Internal wraps an unexpected error. The message is what the caller sees.
func Internal(err error, message string) error {
	return &Error{Kind: KindInternal, Message: message, Err: errors.WithStack(err)}
}

// KindOf reports the kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the message safe to show a client.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong. Please try again later."
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidState, KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
