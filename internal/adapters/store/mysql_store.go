package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of core.AssessmentRepository
type MySQLStore struct {
	db          *sql.DB
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMySQLStore creates a new MySQL store
func NewMySQLStore(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS assessments (
			id VARCHAR(36) PRIMARY KEY,
			verdict VARCHAR(16) NOT NULL,
			sender VARCHAR(512),
			analyzed_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			payload MEDIUMTEXT NOT NULL,
			INDEX idx_assessments_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	s := &MySQLStore{
		db:          db,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	go startCleanupTask(s, logger, cleanupFreq, s.stopCh)

	return s, nil
}

// Get retrieves a stored assessment
func (s *MySQLStore) Get(ctx context.Context, id string) (*core.Assessment, error) {
	var payload string

	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM assessments
		WHERE id = ? AND expires_at > UTC_TIMESTAMP()
	`, id).Scan(&payload)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query assessment: %w", err)
	}

	return decodeAssessment([]byte(payload))
}

// Save stores an assessment
func (s *MySQLStore) Save(ctx context.Context, assessment *core.Assessment) error {
	rec, err := newRecord(assessment, s.retention)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (id, verdict, sender, analyzed_at, expires_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			verdict = VALUES(verdict),
			sender = VALUES(sender),
			analyzed_at = VALUES(analyzed_at),
			expires_at = VALUES(expires_at),
			payload = VALUES(payload)
	`, rec.ID, rec.Verdict, rec.Sender, rec.AnalyzedAt, rec.ExpiresAt, string(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}

	return nil
}

// Delete removes a stored assessment
func (s *MySQLStore) Delete(ctx context.Context, id string) error {
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
func (s *MySQLStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM assessments
		WHERE expires_at <= UTC_TIMESTAMP()
	`)

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
func (s *MySQLStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close MySQL database", zap.Error(err))
		}
	})
}
