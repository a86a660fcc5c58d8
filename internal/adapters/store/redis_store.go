package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "phish:assessment:"

// RedisStore keeps assessments in Redis. Retention is enforced by key expiry.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	retention time.Duration
}

// NewRedisStore creates a new Redis store and checks the connection
func NewRedisStore(addr, password string, db int, logger *zap.Logger, retention time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		logger:    logger,
		retention: retention,
	}, nil
}

// Get retrieves a stored assessment
func (s *RedisStore) Get(ctx context.Context, id string) (*core.Assessment, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query assessment: %w", err)
	}

	return decodeAssessment(payload)
}

// Save stores an assessment with the retention period as its TTL
func (s *RedisStore) Save(ctx context.Context, assessment *core.Assessment) error {
	rec, err := newRecord(assessment, s.retention)
	if err != nil {
		return err
	}

	ttl := s.retention
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, redisKeyPrefix+rec.ID, rec.Payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store assessment: %w", err)
	}

	return nil
}

// Delete removes a stored assessment
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	return nil
}

// Cleanup is a no-op, Redis expires keys itself
func (s *RedisStore) Cleanup(ctx context.Context) error {
	return nil
}

// Stop closes the Redis connection
func (s *RedisStore) Stop() {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}
