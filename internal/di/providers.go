package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/factory"
	"github.com/mikey/phishing-analyzer/internal/ports"
	"github.com/mikey/phishing-analyzer/internal/utils"
)

// provideAnalysis registers everything between the configuration and the
// analysis service. Both containers share it.
func provideAnalysis(container *dig.Container) error {
	// Register text processor
	if err := container.Provide(func(logger *zap.Logger) *utils.TextProcessor {
		return utils.NewTextProcessor(logger)
	}); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewReputationFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewAgeFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewAnalysisFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return err
	}

	// Register gateways
	if err := container.Provide(func(f *factory.ReputationFactory) (core.ReputationGateway, error) {
		return f.CreateReputationGateway()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.AgeFactory) (core.RegistrationAgeGateway, error) {
		return f.CreateAgeGateway()
	}); err != nil {
		return err
	}

	// Register credentials
	if err := container.Provide(func(f *factory.ReputationFactory, logger *zap.Logger) core.Credentials {
		creds := f.Credentials()
		if !creds.HasReputationKey() {
			logger.Warn("No reputation API key configured, assessments will be urgency-only")
		}
		return creds
	}); err != nil {
		return err
	}

	// Register orchestrator
	if err := container.Provide(func(
		f *factory.AnalysisFactory,
		reputation core.ReputationGateway,
		age core.RegistrationAgeGateway,
	) (*core.AnalysisOrchestrator, error) {
		return f.CreateOrchestrator(reputation, age)
	}); err != nil {
		return err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return err
	}

	return nil
}

// provideConfigured registers a ready configuration value
func provideConfigured(container *dig.Container, cfg *config.Config) error {
	return container.Provide(func() *config.Config { return cfg })
}
