package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorType categorizes LLM operation failures for retry classification.
// Types determine whether operations should be retried and with what backoff
// strategy, enabling resilient handling of transient vs. permanent failures.
//
//nolint:godot // linter incorrectly flags properly capitalized comment
type ErrorType string

const (
	// ErrorTypeTimeout indicates request timeout or deadline exceeded (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates rate limit exceeded, retry with backoff (retryable).
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates transient network or provider-side failures (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeAuth indicates missing or rejected credentials (non-retryable).
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypeQuota indicates account quota or credit exhaustion (non-retryable).
	ErrorTypeQuota ErrorType = "quota_exhausted"

	// ErrorTypeModelNotFound indicates the provider does not serve the
	// requested model (non-retryable).
	ErrorTypeModelNotFound ErrorType = "model_not_found"

	// ErrorTypeProviderResponse indicates a well-formed HTTP exchange whose
	// payload could not be interpreted (non-retryable).
	ErrorTypeProviderResponse ErrorType = "provider_response"

	// ErrorTypeValidation indicates the provider rejected the request as
	// malformed (non-retryable).
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeCapability indicates a request feature the target backend
	// does not support, detected before any network call (non-retryable).
	ErrorTypeCapability ErrorType = "capability_mismatch"

	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Common LLM operation errors for consistent error handling.
var (
	// ErrUnknownProvider indicates a provider family with no configured adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidResponse indicates the provider returned an uninterpretable response.
	ErrInvalidResponse = errors.New("invalid provider response")

	// ErrRetriesExhausted indicates the retry budget ran out; the last
	// attempt's error is wrapped alongside it.
	ErrRetriesExhausted = errors.New("all retries exhausted")
)

// ProviderError captures structured error responses from LLM providers.
// Includes HTTP status codes, provider-specific error codes, and retry timing
// to enable appropriate retry behavior and error diagnosis.
type ProviderError struct {
	Provider   string    `json:"provider"`    // Provider name
	StatusCode int       `json:"status_code"` // HTTP status code
	Message    string    `json:"message"`     // Error message
	Code       string    `json:"code"`        // Provider error code
	Type       ErrorType `json:"type"`        // Classified error type
	RetryAfter int       `json:"retry_after"` // Retry-After hint in seconds
}

// Error returns formatted provider error with status code context.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable determines if the provider error warrants a retry attempt.
// Only rate limits and transient network or provider-side failures qualify;
// everything else fails the call immediately.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// GetRetryAfter implements the RetryAfterProvider interface.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// RateLimitError provides detailed rate limit context for backoff calculation.
// Includes retry timing, limit details, and local vs. remote limit distinction
// to enable optimal backoff strategies.
//
//nolint:godot // linter incorrectly flags properly capitalized comment
type RateLimitError struct {
	Provider   string `json:"provider"`
	RetryAfter int    `json:"retry_after"` // Seconds to wait before retry
	ResetAt    int64  `json:"reset_at"`    // Unix timestamp when limit resets
	Limit      int    `json:"limit"`       // Rate limit
	Remaining  int    `json:"remaining"`   // Remaining requests
	LocalLimit bool   `json:"local_limit"` // Whether this is a local limit
}

// Error returns formatted rate limit error with retry guidance.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %d seconds", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Provider)
}

// GetRetryAfter implements the RetryAfterProvider interface.
func (e *RateLimitError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// CapabilityError indicates a request that asks a backend for a feature it
// does not expose, such as thinking mode on an OpenRouter model. It is
// raised before dispatch so no provider call is spent on it.
type CapabilityError struct {
	Model   string `json:"model"`
	Family  string `json:"family"`
	Feature string `json:"feature"`
}

// Error returns the capability mismatch with model and backend context.
func (e *CapabilityError) Error() string {
	return fmt.Sprintf("model %s (%s backend) does not support %s", e.Model, e.Family, e.Feature)
}

// IsRetryableError determines if an error warrants a retry attempt.
// Examines typed errors, sentinel errors, and HTTP status codes to provide
// consistent retry decisions across all LLM operations.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}

	if errors.Is(err, ErrRateLimitExceeded) {
		return true
	}

	// Examine HTTP status codes for retry classification.
	type statusCoder interface {
		StatusCode() int
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code == http.StatusTooManyRequests ||
			code == http.StatusRequestTimeout ||
			code == http.StatusGatewayTimeout ||
			code >= 500
	}

	// Conservative default - avoid retry loops for unknown errors.
	return false
}

// IsRateLimitError identifies rate limiting errors for backoff handling.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Type == ErrorTypeRateLimit
	}

	return errors.Is(err, ErrRateLimitExceeded)
}

// GetRetryAfter extracts a retry-after hint in seconds from rate limit
// errors, or 0 if no specific retry guidance is available.
func GetRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.RetryAfter
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.RetryAfter
	}

	return 0
}

// Classify maps an error onto its taxonomy bucket for logging and result
// records. Typed errors win over sentinels so that a wrapped exhaustion
// error still reports the underlying cause.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return ErrorTypeCapability
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return ErrorTypeRateLimit
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Type
	}

	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return ErrorTypeRateLimit
	case errors.Is(err, ErrInvalidResponse):
		return ErrorTypeProviderResponse
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	default:
		return ErrorTypeUnknown
	}
}
