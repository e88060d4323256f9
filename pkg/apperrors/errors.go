// Package apperrors defines the error taxonomy shared across the engine.
// The kinds are the contract: callers branch on Kind, never on raw driver
// error text, and nothing outside this taxonomy reaches an end user.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the control-flow classification of an engine error.
type Kind string

const (
	// KindValidation covers rejected SQL: non-SELECT statements, syntax
	// errors, empty input. Never a connection-level failure.
	KindValidation Kind = "validation"
	// KindConnection covers adapter construction and acquisition failures.
	KindConnection Kind = "connection"
	// KindExecution covers errors surfaced by the live engine after
	// validation passed (missing table, runtime timeout).
	KindExecution Kind = "execution"
	// KindRateLimit covers sliding-window rejections; carries retry-after.
	KindRateLimit Kind = "rate_limit"
	// KindSecurity covers injection pattern matches; always audited.
	KindSecurity Kind = "security"
	// KindInternal is the fallback for anything unclassified; the message
	// shown to users is generic, details stay in logs.
	KindInternal Kind = "internal"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNoActiveConnection  = errors.New("no active database connection configured")
	ErrUnsupportedDialect  = errors.New("unsupported database type")
	ErrCredentialsMismatch = errors.New("credentials were encrypted with a different key")
)

// Error carries a Kind, a user-safe message, and optional detail strings.
// The wrapped error is for logs only and must never be shown to callers.
type Error struct {
	Kind              Kind
	Message           string
	Details           []string
	RetryAfterSeconds int
	Err               error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation builds a validation error from one or more reasons.
func Validation(details ...string) *Error {
	msg := "query validation failed"
	if len(details) > 0 {
		msg = details[0]
	}
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// Connection builds a connection error. The wrapped err is log-only.
func Connection(msg string, err error) *Error {
	return &Error{Kind: KindConnection, Message: msg, Err: err}
}

// Execution builds an execution error from a classified driver failure.
func Execution(msg string, err error) *Error {
	return &Error{Kind: KindExecution, Message: msg, Err: err}
}

// RateLimited builds a rate-limit error with the retry hint.
func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Kind:              KindRateLimit,
		Message:           "rate limit exceeded",
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// Security builds a blocked-request error for an injection pattern match.
func Security(msg string) *Error {
	return &Error{Kind: KindSecurity, Message: msg}
}

// Internal wraps an unclassified failure behind a generic message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "operation failed", Err: err}
}

// KindOf extracts the Kind from err, or KindInternal for anything that is
// not an engine *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the message safe to surface to an end user.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "operation failed"
}
