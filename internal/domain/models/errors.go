package models

import (
	"fmt"
	"time"
)

// ExtractErrorKind classifies extraction failures. Network-level problems
// never surface as panics or untyped errors; they all collapse here.
type ExtractErrorKind string

const (
	ExtractTimeout     ExtractErrorKind = "timeout"
	ExtractHTTPStatus  ExtractErrorKind = "http_status"
	ExtractDecode      ExtractErrorKind = "decode"
	ExtractRateLimited ExtractErrorKind = "rate_limited"
)

// ExtractError is the typed result of a failed fetch. RetryAfter carries the
// source-provided hint on rate limiting, zero when the source gave none.
type ExtractError struct {
	Kind       ExtractErrorKind
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *ExtractError) Error() string {
	// Status 0 means the failure happened below HTTP (refused connection,
	// DNS); printing the zero code would only mislead.
	if e.Kind == ExtractHTTPStatus && e.Status > 0 {
		return fmt.Sprintf("extract: %s %d: %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("extract: %s: %s", e.Kind, e.Message)
}

// NewExtractError builds an ExtractError with a formatted message.
func NewExtractError(kind ExtractErrorKind, format string, args ...any) *ExtractError {
	return &ExtractError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// SinkErrorKind classifies sink write failures.
type SinkErrorKind string

const (
	SinkConnection SinkErrorKind = "connection"
	SinkAuth       SinkErrorKind = "auth"
	SinkConstraint SinkErrorKind = "constraint"
	SinkPartialErr SinkErrorKind = "partial"
)

// SinkError wraps a sink failure with its classification.
type SinkError struct {
	Kind SinkErrorKind
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink: %s: %v", e.Kind, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
