package di

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/phishing-analyzer/internal/adapters/filter"
	"github.com/mikey/phishing-analyzer/internal/adapters/store"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/ports"
)

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]string{
		"-api-key", "k",
		"-max-indicators", "3",
		"-timeout", "2s",
		"-trusted", "example.com, paypal.com",
		"-json",
	}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "k", flags.APIKey)
	assert.Equal(t, 3, flags.MaxIndicators)
	assert.Equal(t, 2*time.Second, flags.LookupTimeout)
	assert.True(t, flags.JSONOutput)

	_, err = ParseFlags([]string{"-unknown"}, io.Discard)
	assert.Error(t, err)
}

func TestCreateConfigFromFlags(t *testing.T) {
	cfg, err := createConfigFromFlags(&CLIFlags{
		APIKey:         "k",
		MaxIndicators:  3,
		LookupTimeout:  2 * time.Second,
		AgeProvider:    "rdap",
		TrustedDomains: "example.com, paypal.com",
	})
	require.NoError(t, err)

	analysis, err := cfg.GetAnalysis()
	require.NoError(t, err)
	assert.Equal(t, 3, analysis.MaxIndicators)
	assert.Equal(t, 4, analysis.Concurrency)
	assert.Equal(t, 2*time.Second, analysis.LookupTimeout)
	assert.Equal(t, []string{"example.com", "paypal.com"}, analysis.TrustedDomains)

	assert.Equal(t, "k", cfg.GetString("reputation.api_key"))
	assert.Equal(t, "rdap", cfg.GetString("age.provider"))
	assert.Equal(t, "cli", cfg.GetServer().FilterType)
	assert.False(t, cfg.GetBool("store.enabled"))
}

func TestBuildCLIContainer(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{AgeProvider: "none"})
	require.NoError(t, err)

	err = container.Invoke(func(ef ports.EmailFilter, age core.RegistrationAgeGateway) {
		assert.IsType(t, &filter.CliFilter{}, ef)
		assert.Nil(t, age)
	})
	require.NoError(t, err)
}

func TestBuildContainerWithConfig(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("logging.format", "console")
	v.Set("store.cleanup_frequency", "0s")

	container, err := BuildContainerWithConfig(config.NewFromViper(v))
	require.NoError(t, err)

	err = container.Invoke(func(ef ports.EmailFilter, s store.Store) {
		defer s.Stop()
		assert.IsType(t, &filter.RelayFilter{}, ef)
		assert.IsType(t, &store.MemoryStore{}, s)
	})
	require.NoError(t, err)
}
