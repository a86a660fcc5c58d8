package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/phishing-analyzer/internal/adapters/store"
	"github.com/mikey/phishing-analyzer/internal/config"
	"go.uber.org/zap"
)

// StoreFactory creates assessment stores based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates an assessment store based on the configuration
func (f *StoreFactory) CreateStore() (store.Store, error) {
	storeCfg, err := f.cfg.GetStore()
	if err != nil {
		return nil, err
	}

	switch storeCfg.Type {
	case "memory":
		return store.NewMemoryStore(f.logger, storeCfg.Retention, storeCfg.CleanupFrequency), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(storeCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(storeCfg.SQLitePath, f.logger, storeCfg.Retention, storeCfg.CleanupFrequency)
	case "mysql":
		return store.NewMySQLStore(storeCfg.MySQLDSN, f.logger, storeCfg.Retention, storeCfg.CleanupFrequency)
	case "redis":
		return store.NewRedisStore(storeCfg.RedisAddr, storeCfg.RedisPassword, storeCfg.RedisDB, f.logger, storeCfg.Retention)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeCfg.Type)
	}
}

// IsStoreEnabled returns whether assessments are recorded
func (f *StoreFactory) IsStoreEnabled() bool {
	return f.cfg.GetBool("store.enabled")
}
