package factory

import (
	"github.com/mikey/phishing-analyzer/internal/allowlist"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/indicators"
	"github.com/mikey/phishing-analyzer/internal/mailparse"
	"github.com/mikey/phishing-analyzer/internal/urgency"
	"go.uber.org/zap"
)

// AnalysisFactory assembles the analysis pipeline
type AnalysisFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAnalysisFactory creates a new analysis factory
func NewAnalysisFactory(cfg *config.Config, logger *zap.Logger) *AnalysisFactory {
	return &AnalysisFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateOrchestrator wires the parser, extractor, scorer and policy around
// the given gateways. age may be nil.
func (f *AnalysisFactory) CreateOrchestrator(
	reputation core.ReputationGateway,
	age core.RegistrationAgeGateway,
) (*core.AnalysisOrchestrator, error) {
	analysisCfg, err := f.cfg.GetAnalysis()
	if err != nil {
		return nil, err
	}

	scorer := urgency.NewAnalyzer(analysisCfg.UrgencyKeywords)
	f.logger.Debug("Urgency lexicon loaded", zap.Strings("keywords", scorer.Keywords()))

	return core.NewAnalysisOrchestrator(
		mailparse.NewParser(f.logger),
		indicators.NewExtractor(),
		scorer,
		reputation,
		age,
		allowlist.NewChecker(analysisCfg.TrustedDomains, f.logger),
		core.NewRiskAggregator(),
		core.AnalysisOptions{
			MaxIndicators: analysisCfg.MaxIndicators,
			Concurrency:   analysisCfg.Concurrency,
			LookupTimeout: analysisCfg.LookupTimeout,
		},
		f.logger,
	), nil
}
