// Package apperr defines the error taxonomy shared by every service in the
// application and renders errors as RFC 7807 problem documents.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindRateLimited
	KindInvalidToken
	KindForbidden
	KindNotFound
)

// Error is a classified application error. Code and Status are derived from
// the Kind; Detail is safe to show to the caller.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code(), e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Code() string {
	switch e.Kind {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindConflict:
		return "CONFLICT"
	case KindInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case KindRateLimited:
		return "RATE_LIMITED"
	case KindInvalidToken:
		return "INVALID_TOKEN"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindInvalidCredentials, KindInvalidToken:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Validation(detail string) *Error {
	return &Error{Kind: KindValidation, Detail: detail}
}

func Conflict(detail string) *Error {
	return &Error{Kind: KindConflict, Detail: detail}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Detail: "invalid credentials"}
}

func RateLimited(detail string) *Error {
	return &Error{Kind: KindRateLimited, Detail: detail}
}

func InvalidToken(detail string) *Error {
	return &Error{Kind: KindInvalidToken, Detail: detail}
}

func Forbidden(detail string) *Error {
	return &Error{Kind: KindForbidden, Detail: detail}
}

func NotFound(detail string) *Error {
	return &Error{Kind: KindNotFound, Detail: detail}
}

// Internal wraps an unexpected failure. The wrapped error is kept for logs
// and Sentry but never rendered to the caller.
func Internal(detail string, err error) *Error {
	return &Error{Kind: KindInternal, Detail: detail, Err: err}
}

// From classifies an arbitrary error. Unknown errors become internal so raw
// persistence failures never leak upward.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindInternal, Detail: "internal server error", Err: err}
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
