// Package apperr defines the canonical error-kind taxonomy used across the
// bridge engine, mapped to HTTP status at the httpapi boundary.
package apperr

import "fmt"

// Kind is a canonical, user-visible error category.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindBadRequest           Kind = "bad_request"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindConflict             Kind = "conflict"
	KindRateLimited          Kind = "rate_limited"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindInternal             Kind = "internal"
)

// Error is an error carrying a canonical Kind alongside a human message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newErr(KindNotFound, format, args...)
}

func BadRequest(format string, args ...interface{}) *Error {
	return newErr(KindBadRequest, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return newErr(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newErr(KindForbidden, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newErr(KindConflict, format, args...)
}

func RateLimited(format string, args ...interface{}) *Error {
	return newErr(KindRateLimited, format, args...)
}

func UpstreamUnavailable(format string, args ...interface{}) *Error {
	return newErr(KindUpstreamUnavailable, format, args...)
}

func Internal(format string, args ...interface{}) *Error {
	return newErr(KindInternal, format, args...)
}

func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
