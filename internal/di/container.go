package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-analyzer/internal/adapters/store"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/factory"
	"github.com/mikey/phishing-analyzer/internal/logging"
)

// BuildContainer creates and configures the dependency injection container
// for the relay daemon
func BuildContainer() (*dig.Container, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	return BuildContainerWithConfig(cfg)
}

// BuildContainerWithConfig builds the daemon container around cfg
func BuildContainerWithConfig(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := provideConfigured(container, cfg); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register assessment store
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (store.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	// Register analysis service
	if err := container.Provide(func(
		orchestrator *core.AnalysisOrchestrator,
		repo store.Store,
		f *factory.StoreFactory,
		logger *zap.Logger,
		creds core.Credentials,
	) *core.AnalysisService {
		return core.NewAnalysisService(orchestrator, repo, logger, f.IsStoreEnabled(), creds)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
