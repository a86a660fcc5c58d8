package factory

import (
	"fmt"

	"github.com/mikey/phishing-analyzer/internal/adapters/rdap"
	"github.com/mikey/phishing-analyzer/internal/adapters/whois"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// AgeFactory creates registration age gateways based on configuration
type AgeFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAgeFactory creates a new age factory
func NewAgeFactory(cfg *config.Config, logger *zap.Logger) *AgeFactory {
	return &AgeFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAgeGateway creates the configured gateway. Provider "none" disables
// age lookups and returns a nil gateway.
func (f *AgeFactory) CreateAgeGateway() (core.RegistrationAgeGateway, error) {
	ageCfg, err := f.cfg.GetAge()
	if err != nil {
		return nil, err
	}

	switch ageCfg.Provider {
	case "whois":
		return whois.NewClient(ageCfg.Timeout, f.logger), nil
	case "rdap":
		return rdap.NewClient(ageCfg.RDAPServer, ageCfg.Timeout, f.logger)
	case "none":
		f.logger.Info("Registration age lookups disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported age provider: %s", ageCfg.Provider)
	}
}
