package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of core.AssessmentRepository
type SQLiteStore struct {
	db          *sql.DB
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS assessments (
			id TEXT PRIMARY KEY,
			verdict TEXT NOT NULL,
			sender TEXT,
			analyzed_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			payload TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_assessments_expires_at ON assessments(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	s := &SQLiteStore{
		db:          db,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	go startCleanupTask(s, logger, cleanupFreq, s.stopCh)

	return s, nil
}

// Get retrieves a stored assessment
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.Assessment, error) {
	var payload string

	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM assessments
		WHERE id = ? AND expires_at > ?
	`, id, timestamp(s.now())).Scan(&payload)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query assessment: %w", err)
	}

	return decodeAssessment([]byte(payload))
}

// Save stores an assessment
func (s *SQLiteStore) Save(ctx context.Context, assessment *core.Assessment) error {
	rec, err := newRecord(assessment, s.retention)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO assessments (id, verdict, sender, analyzed_at, expires_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Verdict, rec.Sender, timestamp(rec.AnalyzedAt), timestamp(rec.ExpiresAt), string(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}

	return nil
}

// Delete removes a stored assessment
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM assessments
		WHERE id = ?
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}

	return nil
}

// Cleanup removes assessments past their retention period
func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM assessments
		WHERE expires_at <= ?
	`, timestamp(s.now()))

	if err != nil {
		return fmt.Errorf("failed to clean up expired assessments: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		s.logger.Debug("Cleaned up expired assessments", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (s *SQLiteStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close SQLite database", zap.Error(err))
		}
	})
}
