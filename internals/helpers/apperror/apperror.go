// file: internals/helpers/apperror/apperror.go
package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the HTTP layer. Local validation kinds never
// leave partial state behind.
type Kind string

const (
	KindInvalidInput      Kind = "INVALID_INPUT"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindForbidden         Kind = "FORBIDDEN"
	KindLedgerUnavailable Kind = "LEDGER_UNAVAILABLE"
	KindInternal          Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error

	sentinel bool
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind, so errors.Is(err, ErrConflict) holds for any
// conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.sentinel {
		return t.Kind == e.Kind
	}
	return t == e
}

var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput, sentinel: true}
	ErrNotFound          = &Error{Kind: KindNotFound, sentinel: true}
	ErrConflict          = &Error{Kind: KindConflict, sentinel: true}
	ErrForbidden         = &Error{Kind: KindForbidden, sentinel: true}
	ErrLedgerUnavailable = &Error{Kind: KindLedgerUnavailable, sentinel: true}
	ErrInternal          = &Error{Kind: KindInternal, sentinel: true}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InvalidInput(message string) *Error { return New(KindInvalidInput, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }

// KindOf returns KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindLedgerUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
