package configuration

import (
	"time"
)

// Provider family names used as keys in Config.Providers.
const (
	ProviderOpenRouter = "openrouter"
	ProviderBedrock    = "bedrock"
)

// HTTP and endpoint constants.
const (
	DefaultHTTPTimeout        = 120 * time.Second
	DefaultOpenRouterEndpoint = "https://openrouter.ai/api/v1"
	OpenRouterAPIKeyEnv       = "OPENROUTER_API_KEY"
	BedrockRegionEnv          = "AWS_REGION"
	DefaultBedrockRegion      = "us-east-1"

	// Connection pool tuning for the shared HTTP client.
	DefaultMaxIdleConns       = 100
	DefaultIdleTimeoutSeconds = 90
	DefaultTLSTimeoutSeconds  = 10
)

// Retry constants.
const (
	DefaultMaxAttempts       = 3
	DefaultMaxElapsedTime    = 2 * time.Minute
	DefaultInitialInterval   = 1 * time.Second
	DefaultMaxInterval       = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Rate limiting constants.
const (
	DefaultTokensPerSecond = 10
	DefaultBurstSize       = 20
)

// Execution constants.
const (
	DefaultMaxRounds      = 10
	DefaultMaxTokens      = 4096
	DefaultMaxConcurrency = 4
)

// DefaultConfig returns production-ready configuration with sensible defaults.
// Both provider families are pre-wired; credentials are resolved later via
// ResolveFromEnv so that constructing a config never touches the environment.
func DefaultConfig() *Config {
	return &Config{
		HTTPTimeout: DefaultHTTPTimeout,
		Providers: map[string]ProviderConfig{
			ProviderOpenRouter: {
				Endpoint:  DefaultOpenRouterEndpoint,
				APIKeyEnv: OpenRouterAPIKeyEnv,
			},
			ProviderBedrock: {},
		},
		Retry: RetryConfig{
			MaxAttempts:     DefaultMaxAttempts,
			MaxElapsedTime:  DefaultMaxElapsedTime,
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultBackoffMultiplier,
			UseJitter:       true,
		},
		RateLimit: RateLimitConfig{
			TokensPerSecond: DefaultTokensPerSecond,
			BurstSize:       DefaultBurstSize,
			Enabled:         true,
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: false,
			LogLevel:       "info",
			LogFormat:      "json",
			RedactPrompts:  true,
		},
		MaxRounds:      DefaultMaxRounds,
		MaxTokens:      DefaultMaxTokens,
		MaxConcurrency: DefaultMaxConcurrency,
	}
}
