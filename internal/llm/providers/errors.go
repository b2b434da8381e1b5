package providers

import (
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
)

// Provider adapter errors.
var (
	ErrUnsupportedRole = errors.New("unsupported conversation role")
)

// ServerErrorStatusThreshold defines the HTTP status code threshold for server errors.
const ServerErrorStatusThreshold = 500

// retryHintPattern matches the delay phrase providers embed in rate-limit
// message bodies, e.g. "Please try again in 20s" or "retry after 3 seconds".
// Neither SDK exposes the Retry-After header on its typed errors, so the
// prose is the only place the hint survives to.
var retryHintPattern = regexp.MustCompile(
	`(?i)(?:try again in|retry after)\s+(\d+(?:\.\d+)?)\s*(ms|milliseconds?|seconds?|secs?|s|minutes?|mins?|m)?`)

// parseRetryHint extracts a whole-second retry delay from rate-limit error
// prose. Sub-second hints round up to one second so the retry layer never
// treats a real hint as absent; unrecognized phrasing yields zero, leaving
// the computed backoff in charge.
func parseRetryHint(message string) int {
	m := retryHintPattern.FindStringSubmatch(message)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return 0
	}

	seconds := value
	switch strings.ToLower(m[2]) {
	case "ms", "millisecond", "milliseconds":
		seconds = value / 1000
	case "m", "min", "mins", "minute", "minutes":
		seconds = value * 60
	}
	return int(math.Ceil(seconds))
}

// classifyErrorType determines ErrorType from HTTP status and provider error codes.
// Error codes are examined before status codes because providers reuse generic
// statuses (400, 403) for conditions the code string identifies precisely.
func classifyErrorType(statusCode int, errorCode string) llmerrors.ErrorType {
	lowerCode := strings.ToLower(errorCode)
	if strings.Contains(lowerCode, "rate") || strings.Contains(lowerCode, "throttl") {
		return llmerrors.ErrorTypeRateLimit
	}
	if strings.Contains(lowerCode, "timeout") {
		return llmerrors.ErrorTypeTimeout
	}
	if strings.Contains(lowerCode, "auth") || strings.Contains(lowerCode, "unauthorized") ||
		strings.Contains(lowerCode, "api_key") || strings.Contains(lowerCode, "forbidden") {
		return llmerrors.ErrorTypeAuth
	}
	if strings.Contains(lowerCode, "quota") || strings.Contains(lowerCode, "credit") ||
		strings.Contains(lowerCode, "insufficient") {
		return llmerrors.ErrorTypeQuota
	}
	if strings.Contains(lowerCode, "model_not_found") || strings.Contains(lowerCode, "no_model") {
		return llmerrors.ErrorTypeModelNotFound
	}

	// Fall back to status code classification.
	switch statusCode {
	case http.StatusTooManyRequests:
		return llmerrors.ErrorTypeRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return llmerrors.ErrorTypeAuth
	case http.StatusPaymentRequired:
		return llmerrors.ErrorTypeQuota
	case http.StatusNotFound:
		return llmerrors.ErrorTypeModelNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return llmerrors.ErrorTypeTimeout
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return llmerrors.ErrorTypeValidation
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return llmerrors.ErrorTypeNetwork
	default:
		if statusCode >= ServerErrorStatusThreshold {
			return llmerrors.ErrorTypeNetwork
		}
		return llmerrors.ErrorTypeUnknown
	}
}
