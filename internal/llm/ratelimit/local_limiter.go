package ratelimit

import (
	"math"
	"sync/atomic"

	"golang.org/x/time/rate"

	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
)

// timedLimiter wraps a rate limiter with an atomic timestamp and exhaustion
// state, enabling lock-free TTL tracking for cleanup without losing rate
// limit state.
type timedLimiter struct {
	limiter *rate.Limiter
	// lastUsed stores the last access time as a Unix nanosecond timestamp.
	lastUsed atomic.Int64
	// exhausted marks limiters that have rejected requests; cleanup must not
	// grant such keys fresh tokens.
	exhausted atomic.Bool
}

// checkLocalLimit enforces the per-key token-bucket limit.
//
// On rejection it computes a retry delay without consuming a token and
// returns a RateLimitError carrying that hint, floored at one second to keep
// client retry loops from spinning.
func (r *rateLimitMiddleware) checkLocalLimit(key string) error {
	limiter := r.getOrCreateLimiter(key)

	if !limiter.Allow() {
		r.mu.RLock()
		if tl, ok := r.limiters[key]; ok {
			tl.exhausted.Store(true)
		}
		r.mu.RUnlock()

		// Reserve then cancel: measures the wait without leaking capacity.
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		retryAfter := int(math.Ceil(delay.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}

		return &llmerrors.RateLimitError{
			Provider:   key,
			Limit:      int(r.config.TokensPerSecond),
			RetryAfter: retryAfter,
			LocalLimit: true,
		}
	}

	return nil
}
