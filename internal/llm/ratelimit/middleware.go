// Package ratelimit provides client-side request throttling for provider calls.
//
// The middleware applies a per-family token bucket ahead of the network so
// bursts of parallel experiments are smoothed before a provider sees them.
// Rejected requests carry a RateLimitError with retry-after timing, which the
// retry middleware honors. Stale limiters are cleaned up in the background so
// long-running suite processes do not accumulate buckets.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-benchy/internal/llm/configuration"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// Cleanup and lifecycle constants.
const (
	// CleanupInterval determines the frequency of stale limiter cleanup.
	CleanupInterval = 1 * time.Hour

	// LimiterTTL defines the time-to-live for unused limiters.
	// It matches the CleanupInterval to ensure deterministic cleanup behavior.
	LimiterTTL = 1 * time.Hour

	// LimiterTTLMultiplier scales the bucket refill time into a minimum TTL so
	// limiters stay alive long enough to stay effective between bursts.
	LimiterTTLMultiplier = 10
)

// rateLimitMiddleware throttles outbound requests with per-key token buckets.
// All operations are thread-safe; a background goroutine removes buckets that
// have not been touched within the TTL.
type rateLimitMiddleware struct {
	// mu protects access to the limiters map.
	mu sync.RWMutex
	// limiters stores the per-key rate limiters with TTL tracking.
	limiters map[string]*timedLimiter
	// config holds the token bucket parameters.
	config configuration.RateLimitConfig
	// limiterMinTTL is the minimum time-to-live for limiters before cleanup,
	// pre-calculated during initialization.
	limiterMinTTL time.Duration

	// cleanupMu protects Start/Stop operations.
	cleanupMu sync.Mutex
	// cleanupTicker triggers periodic cleanup of stale limiters.
	cleanupTicker *time.Ticker
	// cleanupStop signals the cleanup goroutine to terminate.
	cleanupStop chan struct{}
	// cleanupDone synchronizes the completion of the cleanup goroutine.
	cleanupDone sync.WaitGroup

	logger *slog.Logger
}

// NewRateLimitMiddleware creates throttling middleware from the given config.
//
// Requests are bucketed per provider family with configurable rate and burst
// size. When the config is disabled the middleware passes requests through
// untouched. The constructor starts a background cleanup goroutine that runs
// every CleanupInterval for the lifetime of the process.
func NewRateLimitMiddleware(cfg configuration.RateLimitConfig) (transport.Middleware, error) {
	if err := validateRateLimitConfig(cfg); err != nil {
		return nil, err
	}

	// Derive the minimum TTL from the refill time so a bucket is never
	// collected while it could still owe tokens.
	var limiterMinTTL time.Duration
	if cfg.TokensPerSecond > 0 {
		refillTime := time.Duration(float64(cfg.BurstSize)/cfg.TokensPerSecond) * time.Second
		limiterMinTTL = refillTime * LimiterTTLMultiplier
	}
	if limiterMinTTL < LimiterTTL {
		limiterMinTTL = LimiterTTL
	}

	rlm := &rateLimitMiddleware{
		limiters:      make(map[string]*timedLimiter),
		config:        cfg,
		limiterMinTTL: limiterMinTTL,
		logger:        slog.Default().With("component", "ratelimit"),
	}

	if cfg.Enabled {
		rlm.Start()
	}

	return rlm.middleware(), nil
}

// middleware returns the configured rate limiting middleware function.
func (r *rateLimitMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			if !r.config.Enabled {
				return next.Handle(ctx, req)
			}

			if err := r.checkLocalLimit(r.buildKey(req)); err != nil {
				return nil, err
			}

			return next.Handle(ctx, req)
		})
	}
}

// buildKey scopes buckets per backend family so a throttled backend never
// starves the other one.
func (r *rateLimitMiddleware) buildKey(req *transport.Request) string {
	return req.Family.String()
}

// getOrCreateLimiter retrieves an existing token-bucket limiter or creates one.
//
// Uses double-checked locking to keep the hot path on a read lock. Timestamps
// are updated atomically for lock-free TTL tracking; exhausted limiters keep
// their state so cleanup cannot hand out fresh tokens early.
func (r *rateLimitMiddleware) getOrCreateLimiter(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	r.mu.RLock()
	if tl, ok := r.limiters[key]; ok {
		// Touch while holding RLock so CleanupStale (writer) can't delete before we update.
		tl.lastUsed.Store(now)
		lim := tl.limiter
		r.mu.RUnlock()
		return lim
	}
	r.mu.RUnlock()

	r.mu.Lock()
	if tl, ok := r.limiters[key]; ok {
		tl.lastUsed.Store(now)
		lim := tl.limiter
		r.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rate.Limit(r.config.TokensPerSecond), r.config.BurstSize)
	tl := &timedLimiter{limiter: lim}
	tl.lastUsed.Store(now)
	r.limiters[key] = tl
	r.mu.Unlock()
	return lim
}

// CleanupStale removes unused limiters to prevent memory leaks.
//
// Limiters not touched since the provided timestamp are deleted only when
// they hold full capacity and were never exhausted. Anything else is marked
// exhausted and reset to an empty bucket, so a rate-limited key cannot regain
// burst capacity through collection.
func (r *rateLimitMiddleware) CleanupStale(before time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := before.Add(-r.limiterMinTTL).UnixNano()

	for key, tl := range r.limiters {
		if tl.lastUsed.Load() < cutoff {
			reservation := tl.limiter.Reserve()
			hasFullCapacity := reservation.OK() && reservation.Delay() == 0
			reservation.Cancel()

			if hasFullCapacity && !tl.exhausted.Load() {
				delete(r.limiters, key)
			} else {
				tl.exhausted.Store(true)
				tl.limiter = rate.NewLimiter(rate.Limit(r.config.TokensPerSecond), 0)
			}
		}
	}
}

// Start initiates the background cleanup process for stale limiters.
// Idempotent and thread-safe.
func (r *rateLimitMiddleware) Start() {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()

	if r.cleanupTicker != nil {
		return
	}

	r.cleanupStop = make(chan struct{})
	r.cleanupTicker = time.NewTicker(CleanupInterval)

	r.cleanupDone.Add(1)
	go r.cleanupLoop()

	r.logger.Debug("rate limit cleanup started", "interval", CleanupInterval)
}

// Stop gracefully terminates the background cleanup goroutine.
// Idempotent and thread-safe.
func (r *rateLimitMiddleware) Stop() {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()

	if r.cleanupTicker == nil {
		return
	}

	close(r.cleanupStop)
	r.cleanupTicker.Stop()
	r.cleanupDone.Wait()

	r.cleanupTicker = nil
	r.logger.Debug("rate limit cleanup stopped")
}

// cleanupLoop runs until signaled to stop, collecting limiters that have not
// been accessed within the TTL.
func (r *rateLimitMiddleware) cleanupLoop() {
	defer r.cleanupDone.Done()

	for {
		select {
		case <-r.cleanupTicker.C:
			cutoff := time.Now().Add(-LimiterTTL)
			r.CleanupStale(cutoff)
		case <-r.cleanupStop:
			return
		}
	}
}
