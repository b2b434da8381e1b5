package ratelimit

import (
	"fmt"

	"github.com/ahrav/go-benchy/internal/llm/configuration"
)

// validateRateLimitConfig checks token bucket parameters before any limiter
// is built. Disabled configs skip validation entirely.
func validateRateLimitConfig(cfg configuration.RateLimitConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.TokensPerSecond < 0 {
		return fmt.Errorf("invalid rate limit: TokensPerSecond cannot be negative (got %f)", cfg.TokensPerSecond)
	}
	if cfg.BurstSize < 0 {
		return fmt.Errorf("invalid rate limit: BurstSize cannot be negative (got %d)", cfg.BurstSize)
	}
	if cfg.TokensPerSecond == 0 && cfg.BurstSize > 0 {
		return fmt.Errorf("invalid rate limit: BurstSize must be 0 when TokensPerSecond is 0")
	}

	return nil
}
