package configuration

import (
	"os"
	"strconv"
)

// Environment override names.
const (
	EnvOpenRouterAPIKey  = "BENCHY_OPENROUTER_API_KEY"
	EnvOpenRouterBaseURL = "OPENROUTER_BASE_URL"
	EnvLogLevel          = "BENCHY_LOG_LEVEL"
	EnvLogFormat         = "BENCHY_LOG_FORMAT"
	EnvMaxRounds         = "BENCHY_MAX_ROUNDS"
	EnvMaxConcurrency    = "BENCHY_MAX_CONCURRENCY"
)

// ResolveFromEnv fills credential and override fields from the process
// environment. Values already set on the config win, so callers can inject
// credentials programmatically and bypass the environment entirely. The
// BENCHY_-prefixed key override beats the provider's own variable so a
// shared shell profile's OPENROUTER_API_KEY can be redirected per project.
func (c *Config) ResolveFromEnv() {
	for name, pc := range c.Providers {
		if name == ProviderOpenRouter && pc.APIKey == "" {
			pc.APIKey = os.Getenv(EnvOpenRouterAPIKey)
		}
		if pc.APIKey == "" && pc.APIKeyEnv != "" {
			pc.APIKey = os.Getenv(pc.APIKeyEnv)
		}
		if name == ProviderBedrock && pc.Region == "" {
			pc.Region = os.Getenv(BedrockRegionEnv)
			if pc.Region == "" {
				pc.Region = DefaultBedrockRegion
			}
		}
		c.Providers[name] = pc
	}

	if endpoint := os.Getenv(EnvOpenRouterBaseURL); endpoint != "" {
		pc := c.Providers[ProviderOpenRouter]
		pc.Endpoint = endpoint
		c.Providers[ProviderOpenRouter] = pc
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Observability.LogLevel = level
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		c.Observability.LogFormat = format
	}
	if rounds, err := strconv.Atoi(os.Getenv(EnvMaxRounds)); err == nil && rounds > 0 {
		c.MaxRounds = rounds
	}
	if workers, err := strconv.Atoi(os.Getenv(EnvMaxConcurrency)); err == nil && workers > 0 {
		c.MaxConcurrency = workers
	}
}
