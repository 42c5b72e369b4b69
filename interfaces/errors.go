package interfaces

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies adapter failures into a small fixed taxonomy
// shared by every compute and storage backend. Adapters must map each
// provider-level failure onto exactly one kind; anything they cannot
// classify defaults to KindConnection.
type ErrorKind int

const (
	// KindConnection covers transient transport failures. Retriable
	// with backoff. This is the default for unclassified failures.
	KindConnection ErrorKind = iota

	// KindConfiguration covers bad or missing adapter setup. Fatal,
	// never retried.
	KindConfiguration

	// KindTimeout is returned whenever a caller-supplied deadline is
	// exceeded. Retriable at the caller's discretion.
	KindTimeout

	// KindValidation covers caller errors (malformed task, bad
	// content). Not retried.
	KindValidation

	// KindAuthentication covers rejected credentials. Fatal until the
	// credentials are fixed.
	KindAuthentication

	// KindNotFound covers unknown job identifiers and absent content.
	// Not retried.
	KindNotFound

	// KindRateLimit means the provider throttled the request. Retriable
	// after the RetryAfter hint.
	KindRateLimit
)

// String returns the taxonomy name.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "resource_not_found"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Retryable reports whether the error-handling contract permits a
// caller to retry an operation that failed with this kind.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindConnection, KindTimeout, KindRateLimit:
		return true
	default:
		return false
	}
}

// Error is the structured failure type returned by every adapter.
// The Kind field drives retry policy; Adapter and Details exist for
// operators reading logs, not for branching.
type Error struct {
	Kind    ErrorKind
	Adapter string
	Message string
	Details map[string]any

	// RetryAfter is only set for KindRateLimit, from the provider's
	// throttling hint.
	RetryAfter time.Duration

	cause error
}

// NewError creates a classified adapter error.
func NewError(kind ErrorKind, adapter, message string) *Error {
	return &Error{Kind: kind, Adapter: adapter, Message: message}
}

// WithDetails attaches a details map and returns the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithCause records the underlying error for errors.Unwrap chains.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithRetryAfter records the provider's throttling hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Adapter, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two adapter errors by kind, so callers can branch with
// errors.Is(err, &interfaces.Error{Kind: interfaces.KindTimeout}).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// IsKind reports whether err is an adapter error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == kind
}

// KindOf extracts the taxonomy kind from err. Unclassified errors
// default to KindConnection; context deadline errors are always
// reported as KindTimeout.
func KindOf(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindConnection
}

// Classify wraps an arbitrary error into the taxonomy. Adapter errors
// pass through untouched; context deadline errors become KindTimeout;
// everything else becomes KindConnection per the propagation policy.
func Classify(err error, adapter string) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, adapter, "deadline exceeded").WithCause(err)
	}
	return NewError(KindConnection, adapter, err.Error()).WithCause(err)
}
