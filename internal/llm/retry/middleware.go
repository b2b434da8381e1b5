// Package retry provides transport middleware for resilient provider calls.
// Transient failures are retried with exponential backoff and jitter while
// provider retry-after hints and caller context cancellation are respected.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

var (
	// Configuration validation errors.
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
	errMaxElapsedTimeInvalid  = errors.New("maxElapsedTime must be >= 0")

	// Runtime errors.
	errContextCancelledBeforeRetry = errors.New("context cancelled before retry")
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
	errUnexpectedRetryExhaustion   = errors.New("unexpected retry exhaustion")
)

// retryMiddleware implements retry logic with exponential backoff.
// Handles transient failures with configurable retry policies and respects
// provider-specific retry guidance like Retry-After hints.
type retryMiddleware struct {
	config configuration.RetryConfig
	logger *slog.Logger
	stats  *retryStats
}

// RetryAfterProvider defines an interface for error types that can provide
// a specific duration to wait before retrying.
// This allows providers to communicate backpressure, which the client can
// respect instead of its computed schedule.
type RetryAfterProvider interface {
	// GetRetryAfter returns the recommended duration to wait before the next attempt.
	// If no specific duration is available, it should return zero.
	GetRetryAfter() time.Duration
}

// NewRetryMiddlewareWithConfig creates retry middleware with the specified
// configuration. Implements exponential backoff with full jitter and honors
// provider rate-limit hints when they exceed the computed delay.
func NewRetryMiddlewareWithConfig(cfg configuration.RetryConfig) (transport.Middleware, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}
	if cfg.MaxElapsedTime < 0 {
		return nil, fmt.Errorf("%w, got %v", errMaxElapsedTimeInvalid, cfg.MaxElapsedTime)
	}

	return newRetryMiddleware(cfg), nil
}

// newRetryMiddleware constructs retry middleware around a validated config.
func newRetryMiddleware(cfg configuration.RetryConfig) transport.Middleware {
	rm := &retryMiddleware{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
		stats:  &retryStats{},
	}

	return rm.middleware()
}

// middleware returns the retry middleware function.
func (r *retryMiddleware) middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			var lastErr error
			startTime := time.Now()

			// Fail fast if context is already cancelled to avoid wasted attempts.
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", errContextCancelledBeforeRetry, ctx.Err())
			default:
			}

			maxAttempts := r.config.MaxAttempts
			for attempt := 1; attempt <= maxAttempts; attempt++ {
				// Respect overall timeout to prevent indefinite retry loops.
				if r.config.MaxElapsedTime > 0 && time.Since(startTime) > r.config.MaxElapsedTime {
					r.logger.Warn("max elapsed time exceeded",
						"elapsed", time.Since(startTime),
						"attempts", attempt-1,
						"last_error", lastErr)
					break
				}

				resp, err := next.Handle(ctx, req)
				r.stats.totalAttempts.Add(1)

				if err == nil {
					// Attempts lets callers distinguish clean successes from
					// retried ones in the result record.
					resp.Attempts = attempt
					if attempt > 1 {
						r.stats.successfulRetries.Add(1)
						r.logger.Info("request succeeded after retry",
							"attempt", attempt,
							"model", req.Model)
					} else {
						r.stats.successfulFirstAttempts.Add(1)
					}
					return resp, nil
				}

				// Avoid retrying errors that will always fail.
				if !r.isRetryable(err) {
					r.logger.Debug("non-retryable error",
						"error", err,
						"attempt", attempt,
						"model", req.Model)
					return nil, err
				}

				lastErr = err

				// Prevent unnecessary backoff calculation on final attempt.
				if attempt == maxAttempts {
					break
				}

				// Calculate backoff duration respecting provider guidance.
				backoff := r.calculateBackoff(attempt, err)
				r.recordBackoffMetrics(backoff)

				// Ensure backoff doesn't push us past the overall timeout.
				if r.config.MaxElapsedTime > 0 {
					elapsed := time.Since(startTime)
					if elapsed+backoff > r.config.MaxElapsedTime {
						// A provider hint may exceed the time budget; fall back
						// to the computed schedule when that recovers the attempt.
						retryAfter := r.extractRetryAfter(err)
						exponentialBackoff := r.calculatePureExponentialBackoff(attempt)
						if retryAfter > 0 && elapsed+exponentialBackoff <= r.config.MaxElapsedTime {
							backoff = exponentialBackoff
						} else {
							r.logger.Warn("max elapsed time exceeded",
								"elapsed", elapsed,
								"attempts", attempt,
								"last_error", err)
							break
						}
					}
				}

				r.logger.Debug("retrying after backoff",
					"attempt", attempt,
					"backoff", backoff,
					"error", err,
					"model", req.Model)

				// Wait with context cancellation to enable graceful shutdown.
				select {
				case <-time.After(backoff):
					// Continue to next attempt.
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, ctx.Err())
				}
			}

			if lastErr != nil {
				r.stats.failedRetries.Add(1)
				return nil, fmt.Errorf("%w after %d attempts: %w",
					llmerrors.ErrRetriesExhausted, maxAttempts, lastErr)
			}

			return nil, errUnexpectedRetryExhaustion
		})
	}
}

// isRetryable evaluates error types to determine retry eligibility.
// Typed classifications take precedence over the RetryAfterProvider
// interface so fatal provider errors carrying hints stay fatal.
func (r *retryMiddleware) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *llmerrors.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true // Always retry rate limits.
	}

	var providerErr *llmerrors.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if isNetworkError(err) {
		return true
	}

	// Check for RetryAfterProvider interface last to handle custom error types.
	var provider RetryAfterProvider
	if errors.As(err, &provider) {
		return true
	}

	// Default: don't retry unknown errors.
	return false
}

// isNetworkError checks if an error is a network-related error using proper type assertions.
// This provides robust network error detection without fragile string matching.
func isNetworkError(err error) bool {
	// Check specific types first before interfaces to avoid false negatives.

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var netErr net.Error
		if errors.As(urlErr.Err, &netErr) {
			return netErr.Timeout()
		}
		return isNetworkErrorByString(urlErr.Err.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return isNetworkErrorByString(err.Error())
}

// isNetworkErrorByString checks for network errors using string patterns.
func isNetworkErrorByString(errStr string) bool {
	lowered := strings.ToLower(errStr)
	for _, indicator := range getNetworkErrorIndicators() {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

// getNetworkErrorIndicators returns pre-lowercased network error indicators.
func getNetworkErrorIndicators() []string {
	return []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"eof",
	}
}
