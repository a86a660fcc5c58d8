package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mikey/phishing-analyzer/internal/urgency"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	// A missing .env file is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/phishing-analyzer/")
	v.AddConfigPath("$HOME/.phishing-analyzer")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	bindEnv(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit config file
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and environment bindings
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	return v
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISH_ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// The credential is also accepted under its conventional name
	_ = v.BindEnv("reputation.api_key", "PHISH_ANALYZER_REPUTATION_API_KEY", "VIRUSTOTAL_API_KEY")
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Reputation defaults
	v.SetDefault("reputation.api_key", "")
	v.SetDefault("reputation.base_url", "https://www.virustotal.com")
	v.SetDefault("reputation.rate_limit_per_minute", 4)
	v.SetDefault("reputation.burst", 4)
	v.SetDefault("reputation.retry_max", 1)
	v.SetDefault("reputation.retry_wait_min", "1s")
	v.SetDefault("reputation.retry_wait_max", "5s")

	// Registration age defaults
	v.SetDefault("age.provider", "whois")
	v.SetDefault("age.timeout", "10s")
	v.SetDefault("age.rdap_server", "")

	// Analysis defaults
	v.SetDefault("analysis.max_indicators", 5)
	v.SetDefault("analysis.concurrency", 4)
	v.SetDefault("analysis.lookup_timeout", "10s")
	v.SetDefault("analysis.trusted_domains", []string{})
	v.SetDefault("analysis.urgency_keywords", urgency.DefaultKeywords)

	// Store defaults
	v.SetDefault("store.type", "memory")
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.retention", "720h")
	v.SetDefault("store.cleanup_frequency", "1h")
	v.SetDefault("store.sqlite_path", "/data/assessments.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/phishing_analyzer")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	// Server defaults
	v.SetDefault("server.filter_type", "relay")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.relay.address", "127.0.0.1")
	v.SetDefault("server.relay.port", 10026)
	v.SetDefault("server.relay.enabled", true)
	v.SetDefault("server.headers.verdict", "X-Phish-Verdict")
	v.SetDefault("server.headers.urgency", "X-Phish-Urgency")
	v.SetDefault("server.headers.reason", "X-Phish-Reason")
	v.SetDefault("server.subject_prefix", "[PHISHING] ")
	v.SetDefault("server.modify_subject", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
