package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

func newTestMiddleware(cfg configuration.RateLimitConfig) *rateLimitMiddleware {
	return &rateLimitMiddleware{
		limiters:      make(map[string]*timedLimiter),
		config:        cfg,
		limiterMinTTL: LimiterTTL,
		logger:        slog.Default(),
	}
}

func passthroughHandler(calls *int) transport.Handler {
	return transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		*calls++
		return &transport.Response{Content: "ok", FinishReason: domain.FinishStop}, nil
	})
}

func requestForFamily(family domain.ModelFamily) *transport.Request {
	return &transport.Request{
		Model:  "test-model",
		Family: family,
		Conversation: domain.Transcript{
			{Role: domain.RoleUser, Content: "ping"},
		},
	}
}

func TestNewRateLimitMiddleware_Validation(t *testing.T) {
	tests := []struct {
		name   string
		cfg    configuration.RateLimitConfig
		errMsg string
	}{
		{
			name: "valid_config",
			cfg:  configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 10, BurstSize: 5},
		},
		{
			name:   "negative_tokens_per_second",
			cfg:    configuration.RateLimitConfig{Enabled: true, TokensPerSecond: -1, BurstSize: 5},
			errMsg: "TokensPerSecond cannot be negative",
		},
		{
			name:   "negative_burst_size",
			cfg:    configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 10, BurstSize: -5},
			errMsg: "BurstSize cannot be negative",
		},
		{
			name:   "burst_without_refill",
			cfg:    configuration.RateLimitConfig{Enabled: true, TokensPerSecond: 0, BurstSize: 5},
			errMsg: "BurstSize must be 0 when TokensPerSecond is 0",
		},
		{
			name: "disabled_skips_validation",
			cfg:  configuration.RateLimitConfig{Enabled: false, TokensPerSecond: -1, BurstSize: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := NewRateLimitMiddleware(tt.cfg)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, mw)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, mw)
		})
	}
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{Enabled: false})

	var calls int
	handler := rlm.middleware()(passthroughHandler(&calls))

	for range 20 {
		_, err := handler.Handle(context.Background(), requestForFamily(domain.FamilyOpenRouter))
		require.NoError(t, err)
	}

	assert.Equal(t, 20, calls)
	assert.Zero(t, rlm.GetStats().LocalLimiters, "disabled limiter must not allocate buckets")
}

func TestMiddleware_RejectsBeyondBurst(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 1,
		BurstSize:       3,
	})

	var calls int
	handler := rlm.middleware()(passthroughHandler(&calls))
	req := requestForFamily(domain.FamilyOpenRouter)

	for i := range 3 {
		_, err := handler.Handle(context.Background(), req)
		require.NoError(t, err, "request %d should fit the burst", i+1)
	}

	_, err := handler.Handle(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 3, calls, "rejected request must not reach the handler")

	var rateErr *llmerrors.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.True(t, rateErr.LocalLimit)
	assert.Equal(t, "openrouter", rateErr.Provider)
	assert.GreaterOrEqual(t, rateErr.RetryAfter, 1, "hint is floored at one second")
}

func TestMiddleware_FamiliesUseSeparateBuckets(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 1,
		BurstSize:       1,
	})

	var calls int
	handler := rlm.middleware()(passthroughHandler(&calls))

	_, err := handler.Handle(context.Background(), requestForFamily(domain.FamilyOpenRouter))
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), requestForFamily(domain.FamilyOpenRouter))
	require.Error(t, err, "openrouter bucket is exhausted")

	// The bedrock bucket is untouched by openrouter's exhaustion.
	_, err = handler.Handle(context.Background(), requestForFamily(domain.FamilyBedrock))
	require.NoError(t, err)

	assert.Equal(t, 2, rlm.GetStats().LocalLimiters)
}

func TestGetOrCreateLimiter_ReusesInstance(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 10,
		BurstSize:       5,
	})

	first := rlm.getOrCreateLimiter("openrouter")
	second := rlm.getOrCreateLimiter("openrouter")

	assert.Same(t, first, second)
	assert.Equal(t, 1, rlm.GetStats().LocalLimiters)
}

func TestCleanupStale(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 1,
		BurstSize:       1,
	})

	// An untouched bucket with full capacity.
	rlm.getOrCreateLimiter("idle")
	// A bucket that rejected traffic.
	require.Error(t, rlm.checkLocalLimit("busy"), "second draw from a one-token bucket must fail")

	// Age both buckets past the TTL.
	stale := time.Now().Add(-2 * rlm.limiterMinTTL).UnixNano()
	rlm.mu.Lock()
	for _, tl := range rlm.limiters {
		tl.lastUsed.Store(stale)
	}
	rlm.mu.Unlock()

	rlm.CleanupStale(time.Now())

	rlm.mu.RLock()
	defer rlm.mu.RUnlock()
	_, idleAlive := rlm.limiters["idle"]
	busy, busyAlive := rlm.limiters["busy"]

	assert.False(t, idleAlive, "idle full-capacity bucket should be collected")
	require.True(t, busyAlive, "exhausted bucket must survive collection")
	assert.True(t, busy.exhausted.Load())
	assert.Zero(t, busy.limiter.Burst(), "surviving bucket is reset to empty")
}

func TestCheckLocalLimit_ExhaustedSurvivesFirstDraw(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 1,
		BurstSize:       1,
	})

	require.NoError(t, rlm.checkLocalLimit("openrouter"))

	err := rlm.checkLocalLimit("openrouter")
	require.Error(t, err)

	rlm.mu.RLock()
	tl := rlm.limiters["openrouter"]
	rlm.mu.RUnlock()
	assert.True(t, tl.exhausted.Load(), "rejection must mark the bucket exhausted")
}

func TestStartStop_Idempotent(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 10,
		BurstSize:       5,
	})

	rlm.Start()
	rlm.Start() // Second start is a no-op.
	rlm.Stop()
	rlm.Stop() // Second stop is a no-op.

	// A fresh start after stop must work.
	rlm.Start()
	rlm.Stop()
}

func TestMiddleware_ConcurrentAccessSingleBucket(t *testing.T) {
	rlm := newTestMiddleware(configuration.RateLimitConfig{
		Enabled:         true,
		TokensPerSecond: 1000,
		BurstSize:       1000,
	})

	handler := rlm.middleware()(transport.HandlerFunc(
		func(context.Context, *transport.Request) (*transport.Response, error) {
			return &transport.Response{Content: "ok"}, nil
		}))

	var wg sync.WaitGroup
	errs := make([]error, 64)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = handler.Handle(context.Background(), requestForFamily(domain.FamilyBedrock))
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, 1, rlm.GetStats().LocalLimiters, "one family means one bucket")
}
