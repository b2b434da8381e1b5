package retry

import (
	"errors"
	"math/rand/v2"
	"time"
)

// calculateBackoff computes the wait duration before the next attempt.
// Exponential backoff with optional full jitter forms the baseline; a
// provider retry-after hint replaces it only when the hint is larger, so a
// short hint never collapses the backoff schedule.
func (r *retryMiddleware) calculateBackoff(attempt int, err error) time.Duration {
	backoff := r.calculatePureExponentialBackoff(attempt)

	if retryAfter := r.extractRetryAfter(err); retryAfter > backoff {
		return retryAfter
	}

	return backoff
}

// calculatePureExponentialBackoff computes backoff without provider hints.
// Used when a retry-after hint would exceed the elapsed time budget but the
// computed schedule still fits.
func (r *retryMiddleware) calculatePureExponentialBackoff(attempt int) time.Duration {
	baseBackoff := r.config.InitialInterval
	if baseBackoff <= 0 {
		baseBackoff = time.Millisecond // Minimum to prevent a hot loop.
	}

	for i := 1; i < attempt; i++ {
		multiplier := r.config.Multiplier
		if multiplier < 1.0 {
			multiplier = 1.0
		}
		baseBackoff = time.Duration(float64(baseBackoff) * multiplier)
		if r.config.MaxInterval > 0 && baseBackoff > r.config.MaxInterval {
			baseBackoff = r.config.MaxInterval
			break
		}
	}

	if r.config.UseJitter && baseBackoff > 0 {
		// Full jitter: uniform over (0, backoff] avoids synchronized retry
		// storms across concurrent experiments.
		jitter := rand.Int64N(int64(baseBackoff)) + 1 // #nosec G404 -- jitter needs no cryptographic randomness
		return time.Duration(jitter)
	}

	return baseBackoff
}

// extractRetryAfter pulls a provider-supplied wait hint out of the error
// chain. Both RateLimitError and ProviderError satisfy RetryAfterProvider,
// so one interface check covers the whole taxonomy.
func (r *retryMiddleware) extractRetryAfter(err error) time.Duration {
	var provider RetryAfterProvider
	if errors.As(err, &provider) {
		return provider.GetRetryAfter()
	}
	return 0
}

// ExponentialBackoff calculates backoff duration for a given attempt using
// the supplied schedule parameters. Attempt numbering starts at 1.
func ExponentialBackoff(attempt int, initial, maxInterval time.Duration, multiplier float64) time.Duration {
	if attempt <= 1 {
		return initial
	}

	backoff := float64(initial)
	for i := 1; i < attempt; i++ {
		backoff *= multiplier
		if maxInterval > 0 && time.Duration(backoff) > maxInterval {
			return maxInterval
		}
	}

	return time.Duration(backoff)
}

// CalculateJitter applies full jitter to a backoff duration, returning a
// uniformly random duration in (0, backoff].
func CalculateJitter(backoff time.Duration) time.Duration {
	if backoff <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(backoff)) + 1) // #nosec G404 -- jitter needs no cryptographic randomness
}
