package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// Kind classifies an error for HTTP mapping and logging.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindForbidden       Kind = "forbidden"
	KindPaymentRequired Kind = "payment_required"
	KindRateLimited     Kind = "rate_limited"
	KindDependency      Kind = "dependency_error"
	KindTimeout         Kind = "timeout"
	KindInternal        Kind = "internal_error"
)

// Error carries a kind, a human message and an optional wrapped cause.
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

func (e *Error) Unwrap() error { return e.Err }

// Is matches two apperr errors by kind so sentinel comparisons work.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Common sentinels used across services.
var (
	ErrEpisodeNotFound = New(KindNotFound, "episode not found")
	ErrTitleNotFound   = New(KindNotFound, "title not found")
	ErrUserNotFound    = New(KindNotFound, "user not found")
	ErrRecordNotFound  = New(KindNotFound, "watch record not found")
	ErrNotWatched      = New(KindConflict, "rating requires a prior watch record on the title")
	ErrTimeout         = New(KindTimeout, "request deadline exceeded")
)

// KindOf extracts the kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps an error kind to its HTTP status code.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden:
		return fiber.StatusForbidden
	case KindPaymentRequired:
		return fiber.StatusPaymentRequired
	case KindRateLimited:
		return fiber.StatusTooManyRequests
	case KindDependency:
		return fiber.StatusServiceUnavailable
	case KindTimeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// Message returns the human message without the wrapped cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
