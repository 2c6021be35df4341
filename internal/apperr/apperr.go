package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind defines the category of an error and, at the HTTP boundary, its status code.
type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND"
	KindProtected       Kind = "PROTECTED"
	KindUnsupportedType Kind = "UNSUPPORTED_TYPE"
	KindTooLarge        Kind = "TOO_LARGE"
	KindUpstream        Kind = "UPSTREAM"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindInternal        Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

func Protected(format string, args ...any) *Error {
	return New(KindProtected, fmt.Sprintf(format, args...), nil)
}

func UnsupportedType(format string, args ...any) *Error {
	return New(KindUnsupportedType, fmt.Sprintf(format, args...), nil)
}

func TooLarge(format string, args ...any) *Error {
	return New(KindTooLarge, fmt.Sprintf(format, args...), nil)
}

// Upstream wraps a failed completion call. The message is the upstream error text so
// it reaches the caller verbatim.
func Upstream(err error) *Error {
	return New(KindUpstream, err.Error(), err)
}

func Internal(msg string, err error) *Error {
	return New(KindInternal, msg, err)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
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

// Message returns the user-facing message for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindProtected, KindUnsupportedType, KindTooLarge:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
