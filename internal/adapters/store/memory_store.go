package store

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of core.AssessmentRepository
type MemoryStore struct {
	entries     map[string]*record
	mu          sync.RWMutex
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger, retention, cleanupFreq time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:     make(map[string]*record),
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	go startCleanupTask(s, logger, cleanupFreq, s.stopCh)

	return s
}

// Get retrieves a stored assessment
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || !s.now().Before(entry.ExpiresAt) {
		return nil, ErrNotFound
	}

	return decodeAssessment(entry.Payload)
}

// Save stores an assessment
func (s *MemoryStore) Save(ctx context.Context, assessment *core.Assessment) error {
	rec, err := newRecord(assessment, s.retention)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[rec.ID] = rec
	return nil
}

// Delete removes a stored assessment
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// Cleanup removes assessments past their retention period
func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expiredCount := 0

	for id, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, id)
			expiredCount++
		}
	}

	s.logger.Debug("Cleaned up expired assessments", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stop stops the background cleanup task
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// startCleanupTask runs repo.Cleanup every freq until stopCh is closed
func startCleanupTask(repo core.AssessmentRepository, logger *zap.Logger, freq time.Duration, stopCh <-chan struct{}) {
	if freq <= 0 {
		return
	}
	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := repo.Cleanup(context.Background()); err != nil {
				logger.Error("Failed to clean up assessments", zap.Error(err))
			}
		case <-stopCh:
			return
		}
	}
}
