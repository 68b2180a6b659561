// Package errs defines the error-kind taxonomy shared across the audit
// pipeline (fetcher, performance client, LLM client, crawler,
// orchestrator, job manager). Every component that can fail wraps its
// failure in an *Error carrying one of the Kind constants so that
// upstream retry and propagation logic can dispatch on errors.As
// instead of string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure. Kinds are stable strings so they
// can be logged, compared, and surfaced to clients without leaking
// Go-specific error types.
type Kind string

const (
	KindCanceled       Kind = "canceled"
	KindTimeout        Kind = "timeout"
	KindSSRFBlocked    Kind = "ssrf_blocked"
	KindNetwork        Kind = "network"
	KindHTTP4xx        Kind = "http_4xx"
	KindHTTP5xx        Kind = "http_5xx"
	KindRateLimited    Kind = "rate_limited"
	KindParseError     Kind = "parse_error"
	KindLLMUnavailable Kind = "llm_unavailable"
	KindInvalidConfig  Kind = "invalid_config"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal"
)

// retryableKinds are the kinds the fetcher and performance-oracle
// layers are permitted to retry (see spec §7 Retry policy). The
// crawler and orchestrator never retry above this layer.
var retryableKinds = map[Kind]bool{
	KindTimeout:     true,
	KindNetwork:     true,
	KindHTTP5xx:     true,
	KindRateLimited: true,
}

// Error is the concrete error type used throughout the pipeline.
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

// Is allows errors.Is(err, &Error{Kind: KindTimeout}) style matching
// on Kind alone, ignoring Message/Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// IsRetryable reports whether this error's Kind may be retried by the
// fetcher or performance-oracle layers.
func (e *Error) IsRetryable() bool {
	return retryableKinds[e.Kind]
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Of returns the Kind carried by err if err is (or wraps) an *Error,
// and ok=false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}

// Retryable reports whether err should be retried per the kinds in
// retryableKinds. Errors that are not *errs.Error default to
// non-retryable — only recognized, classified failures are retried.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetryable()
	}
	return false
}
