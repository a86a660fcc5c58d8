package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGatewayErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("failed to look up: %w", NewGatewayError("virustotal", GatewayRateLimited, cause))

	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, cause))

	var gwErr *GatewayError
	assert.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "rate limited", gwErr.Reason())
	assert.Equal(t, "virustotal: rate_limited: boom", gwErr.Error())
}

func TestAsGatewayError(t *testing.T) {
	classified := NewGatewayError("whois", GatewayNotFound, nil)
	assert.Same(t, classified, AsGatewayError("other", fmt.Errorf("wrapped: %w", classified)))

	plain := AsGatewayError("whois", errors.New("connection reset"))
	assert.Equal(t, GatewayUnreachable, plain.Kind)
	assert.Equal(t, "whois", plain.Provider)
}

func TestParseErrorIsMalformed(t *testing.T) {
	err := &ParseError{Reason: "no header fields"}

	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Equal(t, "malformed message: no header fields", err.Error())
}

func TestAnalysisErrorKinds(t *testing.T) {
	parse := &AnalysisError{Kind: AnalysisParseFailed, Err: &ParseError{Reason: "empty input"}}
	assert.True(t, errors.Is(parse, ErrParseFailed))
	assert.True(t, errors.Is(parse, ErrMalformed))
	assert.False(t, errors.Is(parse, ErrCancelled))

	cancelled := &AnalysisError{Kind: AnalysisCancelled, Err: context.Canceled}
	assert.True(t, errors.Is(cancelled, ErrCancelled))
	assert.True(t, errors.Is(cancelled, context.Canceled))
}

func TestAgeFromCreation(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, AgeResult{Days: 10, Known: true}, AgeFromCreation(now.AddDate(0, 0, -10), now))
	assert.Equal(t, AgeResult{Days: 0, Known: true}, AgeFromCreation(now.Add(-23*time.Hour), now))
	assert.Equal(t, AgeResult{Days: 0, Known: true}, AgeFromCreation(now.AddDate(1, 0, 0), now))
}
