package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultMaxRounds, cfg.MaxRounds)
	assert.Equal(t, int64(DefaultMaxTokens), cfg.MaxTokens)
	assert.Equal(t, DefaultMaxConcurrency, cfg.MaxConcurrency)

	t.Run("retry_defaults", func(t *testing.T) {
		assert.Equal(t, DefaultMaxAttempts, cfg.Retry.MaxAttempts)
		assert.Equal(t, 2*time.Minute, cfg.Retry.MaxElapsedTime)
		assert.Equal(t, 1*time.Second, cfg.Retry.InitialInterval)
		assert.Equal(t, 30*time.Second, cfg.Retry.MaxInterval)
		assert.Equal(t, 2.0, cfg.Retry.Multiplier)
		assert.True(t, cfg.Retry.UseJitter)
	})

	t.Run("rate_limit_defaults", func(t *testing.T) {
		assert.True(t, cfg.RateLimit.Enabled)
		assert.Equal(t, float64(DefaultTokensPerSecond), cfg.RateLimit.TokensPerSecond)
		assert.Equal(t, DefaultBurstSize, cfg.RateLimit.BurstSize)
	})

	t.Run("providers_pre_wired", func(t *testing.T) {
		or, ok := cfg.Providers[ProviderOpenRouter]
		require.True(t, ok)
		assert.Equal(t, DefaultOpenRouterEndpoint, or.Endpoint)
		assert.Equal(t, OpenRouterAPIKeyEnv, or.APIKeyEnv)
		assert.Empty(t, or.APIKey, "keys are resolved lazily, never embedded")

		_, ok = cfg.Providers[ProviderBedrock]
		require.True(t, ok)
	})

	t.Run("observability_defaults", func(t *testing.T) {
		assert.Equal(t, "info", cfg.Observability.LogLevel)
		assert.Equal(t, "json", cfg.Observability.LogFormat)
		assert.True(t, cfg.Observability.RedactPrompts)
		assert.False(t, cfg.Observability.MetricsEnabled)
	})
}

func TestDefaultConfig_Isolation(t *testing.T) {
	// Each call returns an independent config; mutating one must not leak
	// into the next.
	first := DefaultConfig()
	pc := first.Providers[ProviderOpenRouter]
	pc.APIKey = "sk-mutated"
	first.Providers[ProviderOpenRouter] = pc

	second := DefaultConfig()
	assert.Empty(t, second.Providers[ProviderOpenRouter].APIKey)
}
