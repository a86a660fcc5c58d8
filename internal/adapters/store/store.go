package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
)

// ErrNotFound is returned when an assessment is not stored or has expired
var ErrNotFound = errors.New("assessment not found")

// Store is an AssessmentRepository with a background cleanup task
type Store interface {
	core.AssessmentRepository

	// Stop stops background work and releases connections
	Stop()
}

// noExpiry is used when retention is disabled
var noExpiry = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// record is the stored form of an assessment
type record struct {
	ID         string
	Verdict    string
	Sender     string
	AnalyzedAt time.Time
	ExpiresAt  time.Time
	Payload    []byte
}

func newRecord(a *core.Assessment, retention time.Duration) (*record, error) {
	if a == nil || a.ID == "" {
		return nil, errors.New("assessment has no id")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assessment: %w", err)
	}
	expiresAt := noExpiry
	if retention > 0 {
		expiresAt = a.AnalyzedAt.UTC().Add(retention)
	}
	return &record{
		ID:         a.ID,
		Verdict:    string(a.Verdict),
		Sender:     a.Message.Sender,
		AnalyzedAt: a.AnalyzedAt.UTC(),
		ExpiresAt:  expiresAt,
		Payload:    payload,
	}, nil
}

func decodeAssessment(payload []byte) (*core.Assessment, error) {
	var a core.Assessment
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("failed to decode assessment: %w", err)
	}
	return &a, nil
}

// timestamp renders t so that string order matches time order
func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
