package social

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a caller-facing failure: Message is safe to show to the user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound reports a referenced account or post that does not exist
func NotFound(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// Forbidden reports an attempt to act on someone else's resource
func Forbidden(message string) *Error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// BadRequest reports input the operation cannot accept
func BadRequest(message string) *Error {
	return &Error{Kind: ErrBadRequest, Message: message}
}

// Conflict reports a uniqueness violation
func Conflict(message string) *Error {
	return &Error{Kind: ErrConflict, Message: message}
}

// Unauthorized reports failed authentication
func Unauthorized(message string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

// PostNotFound is the error for a missing post
func PostNotFound() *Error { return NotFound("Post not found.") }

// AccountNotFound is the error for a missing account
func AccountNotFound() *Error { return NotFound("User not found.") }
