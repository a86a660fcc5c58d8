package di

import (
	"flag"
	"io"
	"strings"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Reputation flags
	APIKey string

	// Analysis flags
	MaxIndicators  int
	Concurrency    int
	LookupTimeout  time.Duration
	AgeProvider    string
	TrustedDomains string

	// Input and output flags
	InputFile  string
	JSONOutput bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line arguments into a CLIFlags struct
func ParseFlags(args []string, output io.Writer) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet("phish-analyzer", flag.ContinueOnError)
	fs.SetOutput(output)

	// Reputation flags
	fs.StringVar(&flags.APIKey, "api-key", "", "VirusTotal API key (defaults to VIRUSTOTAL_API_KEY)")

	// Analysis flags
	fs.IntVar(&flags.MaxIndicators, "max-indicators", 0, "Maximum indicators enriched per message (0 uses config)")
	fs.IntVar(&flags.Concurrency, "concurrency", 0, "Maximum concurrent lookups (0 uses config)")
	fs.DurationVar(&flags.LookupTimeout, "timeout", 0, "Timeout for each lookup (0 uses config)")
	fs.StringVar(&flags.AgeProvider, "age-provider", "", "Registration age provider (whois, rdap, none)")
	fs.StringVar(&flags.TrustedDomains, "trusted", "", "Comma-separated list of trusted domains")

	// Input and output flags
	fs.StringVar(&flags.InputFile, "file", "", "Input message file (use stdin if not specified)")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print the assessment as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := createConfigFromFlags(flags)
		if err != nil {
			return nil, err
		}
		if flags.ConfigFile != "" {
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	// Register analysis service with no store
	if err := container.Provide(func(
		orchestrator *core.AnalysisOrchestrator,
		logger *zap.Logger,
		creds core.Credentials,
	) *core.AnalysisService {
		return core.NewAnalysisService(orchestrator, nil, logger, false, creds)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags layers the command line flags over the defaults,
// or over the config file when one is given
func createConfigFromFlags(flags *CLIFlags) (*config.Config, error) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	if flags.ConfigFile != "" {
		var err error
		cfg, err = config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
	}
	v := cfg.GetViper()

	// Set some cli specific settings
	v.Set("server.filter_type", "cli")
	v.Set("cli.verbose", flags.Verbose)
	v.Set("cli.json", flags.JSONOutput)
	v.Set("store.enabled", false)

	if flags.APIKey != "" {
		v.Set("reputation.api_key", flags.APIKey)
	}
	if flags.MaxIndicators > 0 {
		v.Set("analysis.max_indicators", flags.MaxIndicators)
	}
	if flags.Concurrency > 0 {
		v.Set("analysis.concurrency", flags.Concurrency)
	}
	if flags.LookupTimeout > 0 {
		v.Set("analysis.lookup_timeout", flags.LookupTimeout.String())
	}
	if flags.AgeProvider != "" {
		v.Set("age.provider", flags.AgeProvider)
	}
	if flags.TrustedDomains != "" {
		domains := strings.Split(flags.TrustedDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("analysis.trusted_domains", domains)
	}

	return cfg, nil
}
