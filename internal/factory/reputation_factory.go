package factory

import (
	"github.com/mikey/phishing-analyzer/internal/adapters/virustotal"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// ReputationFactory creates reputation gateways
type ReputationFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewReputationFactory creates a new reputation factory
func NewReputationFactory(cfg *config.Config, logger *zap.Logger) *ReputationFactory {
	return &ReputationFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReputationGateway creates the VirusTotal gateway
func (f *ReputationFactory) CreateReputationGateway() (core.ReputationGateway, error) {
	repCfg, err := f.cfg.GetReputation()
	if err != nil {
		return nil, err
	}

	return virustotal.NewClient(virustotal.Config{
		BaseURL:            repCfg.BaseURL,
		RateLimitPerMinute: repCfg.RateLimitPerMinute,
		Burst:              repCfg.Burst,
		RetryMax:           repCfg.RetryMax,
		RetryWaitMin:       repCfg.RetryWaitMin,
		RetryWaitMax:       repCfg.RetryWaitMax,
	}, f.logger), nil
}

// Credentials returns the configured credentials
func (f *ReputationFactory) Credentials() core.Credentials {
	return core.Credentials{ReputationAPIKey: f.cfg.GetString("reputation.api_key")}
}
