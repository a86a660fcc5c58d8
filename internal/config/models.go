package config

import "time"

// ReputationConfig represents the configuration for the reputation gateway
type ReputationConfig struct {
	APIKey             string
	BaseURL            string
	RateLimitPerMinute int
	Burst              int
	RetryMax           int
	RetryWaitMin       time.Duration
	RetryWaitMax       time.Duration
}

// AgeConfig represents the configuration for the registration age gateway
type AgeConfig struct {
	Provider   string
	Timeout    time.Duration
	RDAPServer string
}

// AnalysisConfig represents the analysis limits and lexicons
type AnalysisConfig struct {
	MaxIndicators   int
	Concurrency     int
	LookupTimeout   time.Duration
	TrustedDomains  []string
	UrgencyKeywords []string
}

// StoreConfig represents the configuration for the assessment store
type StoreConfig struct {
	Type             string
	Enabled          bool
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// HeadersConfig names the headers added by the relay
type HeadersConfig struct {
	Verdict string
	Urgency string
	Reason  string
}

// ServerConfig represents the configuration for the relay daemon
type ServerConfig struct {
	FilterType    string
	ListenAddress string
	RelayAddress  string
	RelayPort     int
	RelayEnabled  bool
	Headers       HeadersConfig
	SubjectPrefix string
	ModifySubject bool
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GetReputation returns the reputation gateway configuration
func (c *Config) GetReputation() (ReputationConfig, error) {
	waitMin, err := c.GetDuration("reputation.retry_wait_min")
	if err != nil {
		return ReputationConfig{}, err
	}
	waitMax, err := c.GetDuration("reputation.retry_wait_max")
	if err != nil {
		return ReputationConfig{}, err
	}
	return ReputationConfig{
		APIKey:             c.GetString("reputation.api_key"),
		BaseURL:            c.GetString("reputation.base_url"),
		RateLimitPerMinute: c.GetInt("reputation.rate_limit_per_minute"),
		Burst:              c.GetInt("reputation.burst"),
		RetryMax:           c.GetInt("reputation.retry_max"),
		RetryWaitMin:       waitMin,
		RetryWaitMax:       waitMax,
	}, nil
}

// GetAge returns the registration age gateway configuration
func (c *Config) GetAge() (AgeConfig, error) {
	timeout, err := c.GetDuration("age.timeout")
	if err != nil {
		return AgeConfig{}, err
	}
	return AgeConfig{
		Provider:   c.GetString("age.provider"),
		Timeout:    timeout,
		RDAPServer: c.GetString("age.rdap_server"),
	}, nil
}

// GetAnalysis returns the analysis configuration
func (c *Config) GetAnalysis() (AnalysisConfig, error) {
	timeout, err := c.GetDuration("analysis.lookup_timeout")
	if err != nil {
		return AnalysisConfig{}, err
	}
	return AnalysisConfig{
		MaxIndicators:   c.GetInt("analysis.max_indicators"),
		Concurrency:     c.GetInt("analysis.concurrency"),
		LookupTimeout:   timeout,
		TrustedDomains:  c.GetStringSlice("analysis.trusted_domains"),
		UrgencyKeywords: c.GetStringSlice("analysis.urgency_keywords"),
	}, nil
}

// GetStore returns the assessment store configuration
func (c *Config) GetStore() (StoreConfig, error) {
	retention, err := c.GetDuration("store.retention")
	if err != nil {
		return StoreConfig{}, err
	}
	cleanupFreq, err := c.GetDuration("store.cleanup_frequency")
	if err != nil {
		return StoreConfig{}, err
	}
	return StoreConfig{
		Type:             c.GetString("store.type"),
		Enabled:          c.GetBool("store.enabled"),
		Retention:        retention,
		CleanupFrequency: cleanupFreq,
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
		RedisAddr:        c.GetString("store.redis_addr"),
		RedisPassword:    c.GetString("store.redis_password"),
		RedisDB:          c.GetInt("store.redis_db"),
	}, nil
}

// GetServer returns the relay daemon configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:    c.GetString("server.filter_type"),
		ListenAddress: c.GetString("server.listen_address"),
		RelayAddress:  c.GetString("server.relay.address"),
		RelayPort:     c.GetInt("server.relay.port"),
		RelayEnabled:  c.GetBool("server.relay.enabled"),
		Headers: HeadersConfig{
			Verdict: c.GetString("server.headers.verdict"),
			Urgency: c.GetString("server.headers.urgency"),
			Reason:  c.GetString("server.headers.reason"),
		},
		SubjectPrefix: c.GetString("server.subject_prefix"),
		ModifySubject: c.GetBool("server.modify_subject"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
