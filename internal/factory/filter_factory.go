package factory

import (
	"fmt"

	"github.com/mikey/phishing-analyzer/internal/adapters/filter"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/ports"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.AnalysisService
	textProcessor *utils.TextProcessor
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.AnalysisService,
	textProcessor *utils.TextProcessor,
) *FilterFactory {
	return &FilterFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		textProcessor: textProcessor,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.FilterType {
	case "relay":
		return filter.NewRelayFilter(f.service, f.logger, f.textProcessor, serverCfg), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
