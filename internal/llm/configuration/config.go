package configuration

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Configuration validation errors.
var (
	// ErrInvalidConfig indicates a configuration that fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds comprehensive configuration for the invocation engine.
// Includes provider settings, resilience parameters, execution bounds,
// and observability options for production-ready LLM experiments.
type Config struct {
	// HTTP client configuration. HTTPTimeout bounds each provider call
	// unless a request carries its own timeout.
	HTTPTimeout time.Duration `json:"http_timeout"`
	HTTPClient  *http.Client  `json:"-"`

	// Providers maps family names ("openrouter", "bedrock") to their
	// transport and credential settings.
	Providers map[string]ProviderConfig `json:"providers"`

	// Retry configuration for transient provider failures.
	Retry RetryConfig `json:"retry"`

	// RateLimit configuration for the local per-provider token bucket.
	RateLimit RateLimitConfig `json:"rate_limit"`

	// Observability configuration.
	Observability ObservabilityConfig `json:"observability"`

	// MaxRounds bounds the invoke/execute loop per experiment.
	MaxRounds int `json:"max_rounds"`

	// MaxTokens caps completion tokens per provider call.
	MaxTokens int64 `json:"max_tokens"`

	// MaxConcurrency bounds parallel experiments in suite runs.
	MaxConcurrency int `json:"max_concurrency"`
}

// ProviderConfig holds provider-specific configuration and authentication.
// OpenRouter uses Endpoint plus APIKey; Bedrock uses Region with credentials
// resolved through the standard AWS chain unless static keys are set.
type ProviderConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"-"` // Sensitive, not serialized
	// APIKeyEnv names the environment variable ResolveFromEnv reads the
	// key from when APIKey is empty.
	APIKeyEnv string        `json:"api_key_env"`
	Region    string        `json:"region,omitempty"`
	Timeout   time.Duration `json:"timeout"`

	// Static AWS credentials for Bedrock. When either is empty the SDK's
	// default chain (env, shared config, IAM role) resolves credentials.
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
	SessionToken    string `json:"-"`

	Headers map[string]string `json:"headers,omitempty"`
}

// RetryConfig controls retry behavior for failed provider calls.
// Implements exponential backoff with jitter; Retry-After hints from
// providers are honored when they exceed the computed delay.
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts"`     // Total attempts including the first
	MaxElapsedTime  time.Duration `json:"max_elapsed_time"` // Total time budget for all attempts
	InitialInterval time.Duration `json:"initial_interval"` // Starting backoff duration
	MaxInterval     time.Duration `json:"max_interval"`     // Maximum backoff duration
	Multiplier      float64       `json:"multiplier"`       // Exponential backoff multiplier
	UseJitter       bool          `json:"use_jitter"`       // Enable jitter randomization
}

// RateLimitConfig controls the local in-memory token buckets that smooth
// request bursts before they reach a provider.
type RateLimitConfig struct {
	TokensPerSecond float64 `json:"tokens_per_second"`
	BurstSize       int     `json:"burst_size"`
	Enabled         bool    `json:"enabled"`
}

// ObservabilityConfig controls structured logging and metrics emission.
type ObservabilityConfig struct {
	MetricsEnabled bool   `json:"metrics_enabled"`
	LogLevel       string `json:"log_level"`
	LogFormat      string `json:"log_format"`
	// RedactPrompts replaces prompt and response content with lengths in
	// log output.
	RedactPrompts bool `json:"redact_prompts"`
}

// Validate checks the configuration for values the engine cannot run with.
// It returns the first violation found, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http_timeout must be positive", ErrInvalidConfig)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Retry.InitialInterval <= 0 || c.Retry.MaxInterval <= 0 {
		return fmt.Errorf("%w: retry intervals must be positive", ErrInvalidConfig)
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("%w: retry.max_interval below initial_interval", ErrInvalidConfig)
	}
	if c.Retry.Multiplier < 1.0 {
		return fmt.Errorf("%w: retry.multiplier must be at least 1.0", ErrInvalidConfig)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.TokensPerSecond <= 0 {
			return fmt.Errorf("%w: rate_limit.tokens_per_second must be positive", ErrInvalidConfig)
		}
		if c.RateLimit.BurstSize < 1 {
			return fmt.Errorf("%w: rate_limit.burst_size must be at least 1", ErrInvalidConfig)
		}
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("%w: max_rounds must be at least 1", ErrInvalidConfig)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("%w: max_tokens must be at least 1", ErrInvalidConfig)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("%w: max_concurrency must be at least 1", ErrInvalidConfig)
	}
	return nil
}
