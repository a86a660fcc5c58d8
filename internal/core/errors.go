package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned when a raw message has no usable header block
	ErrMalformed = errors.New("malformed message")

	// ErrParseFailed is returned by the orchestrator when parsing failed
	ErrParseFailed = errors.New("parse failed")
	// ErrCancelled is returned by the orchestrator when its context ends
	ErrCancelled = errors.New("analysis cancelled")

	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotFound     = errors.New("not found")
	ErrTimeout      = errors.New("timeout")
	ErrUnreachable  = errors.New("unreachable")
)

// ParseError reports a message that could not be parsed
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
}

// Is makes errors.Is(err, ErrMalformed) true for every ParseError
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformed
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// GatewayErrorKind classifies a failed external lookup
type GatewayErrorKind string

const (
	GatewayUnauthorized GatewayErrorKind = "unauthorized"
	GatewayRateLimited  GatewayErrorKind = "rate_limited"
	GatewayNotFound     GatewayErrorKind = "not_found"
	GatewayTimeout      GatewayErrorKind = "timeout"
	GatewayUnreachable  GatewayErrorKind = "unreachable"
)

var gatewaySentinels = map[GatewayErrorKind]error{
	GatewayUnauthorized: ErrUnauthorized,
	GatewayRateLimited:  ErrRateLimited,
	GatewayNotFound:     ErrNotFound,
	GatewayTimeout:      ErrTimeout,
	GatewayUnreachable:  ErrUnreachable,
}

// GatewayError is a failed reputation or registration-age lookup. It is local
// to one indicator.
type GatewayError struct {
	Kind     GatewayErrorKind `json:"kind"`
	Provider string           `json:"provider,omitempty"`
	Message  string           `json:"message,omitempty"`
	Err      error            `json:"-"`
}

// NewGatewayError creates a GatewayError wrapping cause
func NewGatewayError(provider string, kind GatewayErrorKind, cause error) *GatewayError {
	e := &GatewayError{Kind: kind, Provider: provider, Err: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

// Reason is the short human-readable failure reason
func (e *GatewayError) Reason() string {
	switch e.Kind {
	case GatewayRateLimited:
		return "rate limited"
	case GatewayNotFound:
		return "not found"
	default:
		return string(e.Kind)
	}
}

// Is matches the sentinel for the error's kind
func (e *GatewayError) Is(target error) bool {
	return gatewaySentinels[e.Kind] == target
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// AsGatewayError converts any lookup error into a GatewayError. Errors that
// are not already classified are treated as unreachable.
func AsGatewayError(provider string, err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return NewGatewayError(provider, GatewayUnreachable, err)
}

// AnalysisErrorKind is the terminal failure of an analysis run
type AnalysisErrorKind string

const (
	AnalysisParseFailed AnalysisErrorKind = "parse_failed"
	AnalysisCancelled   AnalysisErrorKind = "cancelled"
)

// AnalysisError is the only error class returned by the orchestrator
type AnalysisError struct {
	Kind AnalysisErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	switch e.Kind {
	case AnalysisParseFailed:
		return fmt.Sprintf("%s: %v", ErrParseFailed, e.Err)
	default:
		return fmt.Sprintf("%s: %v", ErrCancelled, e.Err)
	}
}

// Is matches ErrParseFailed or ErrCancelled depending on the kind
func (e *AnalysisError) Is(target error) bool {
	switch e.Kind {
	case AnalysisParseFailed:
		return target == ErrParseFailed
	case AnalysisCancelled:
		return target == ErrCancelled
	}
	return false
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
