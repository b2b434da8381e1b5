package llm

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// Metrics provides observability data collection for provider operations.
// Supports counters, histograms, and gauges with tag-based dimensionality
// to enable monitoring and performance analysis across backends.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string, value float64)
	RecordHistogram(name string, tags map[string]string, value float64)
	SetGauge(name string, tags map[string]string, value float64)
}

// NoOpMetrics satisfies the Metrics interface without collecting anything.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a metrics collector that discards all data.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) IncrementCounter(_ string, _ map[string]string, _ float64) {}

func (n *NoOpMetrics) RecordHistogram(_ string, _ map[string]string, _ float64) {}

func (n *NoOpMetrics) SetGauge(_ string, _ map[string]string, _ float64) {}

// responsePreviewLimit truncates logged response content.
const responsePreviewLimit = 200

// LoggingMiddleware provides observability for the invocation lifecycle.
// Captures structured logs, metrics, and latency with configurable redaction
// of prompt and response content.
type LoggingMiddleware struct {
	logger        *slog.Logger
	metrics       Metrics
	config        configuration.ObservabilityConfig
	redactPrompts bool
}

// NewLoggingMiddleware creates observability middleware with structured
// logging, error classification, and metrics collection. Nil logger or
// metrics fall back to slog.Default and a no-op collector.
func NewLoggingMiddleware(config configuration.ObservabilityConfig, logger *slog.Logger, metrics Metrics) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}

	lm := &LoggingMiddleware{
		logger:        logger,
		metrics:       metrics,
		config:        config,
		redactPrompts: config.RedactPrompts,
	}

	return lm.Middleware
}

// Middleware wraps handlers with request/response logging and metrics.
// Request tags propagate onto every metric emitted for the call.
func (m *LoggingMiddleware) Middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		requestID := req.TraceID
		if requestID == "" {
			requestID = uuid.New().String()
			req.TraceID = requestID
		}

		baseTags := map[string]string{
			"family": req.Family.String(),
			"model":  req.Model,
		}
		maps.Copy(baseTags, req.Tags)

		m.logRequest(ctx, req, requestID)

		m.metrics.IncrementCounter("llm.requests.total", baseTags, 1)

		start := time.Now()
		resp, err := next.Handle(ctx, req)
		duration := time.Since(start)

		m.metrics.RecordHistogram("llm.request.duration_ms", baseTags, float64(duration.Milliseconds()))

		if err != nil {
			m.handleError(ctx, req, err, requestID, duration, baseTags)
		} else if resp != nil {
			m.handleSuccess(ctx, req, resp, requestID, duration, baseTags)
		}

		return resp, err
	})
}

// logRequest captures structured request data with configurable redaction.
// Prompt content is replaced by its length when redaction is on.
func (m *LoggingMiddleware) logRequest(ctx context.Context, req *transport.Request, requestID string) {
	fields := []any{
		"request_id", requestID,
		"model", req.Model,
		"family", req.Family.String(),
		"turns", len(req.Conversation),
		"tools", len(req.Tools),
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
		"thinking", req.ThinkingMode,
		"timeout_seconds", req.Timeout.Seconds(),
	}

	if req.ExperimentID != "" {
		fields = append(fields, "experiment_id", req.ExperimentID)
	}

	if prompt, ok := latestUserContent(req.Conversation); ok {
		if m.redactPrompts {
			fields = append(fields, "prompt_length", len(prompt))
		} else {
			fields = append(fields, "prompt", truncate(prompt, responsePreviewLimit))
		}
	}

	if system, ok := systemContent(req.Conversation); ok {
		if m.redactPrompts {
			fields = append(fields, "system_prompt_length", len(system))
		} else {
			fields = append(fields, "system_prompt", truncate(system, responsePreviewLimit))
		}
	}

	m.logger.InfoContext(ctx, "provider request started", fields...)
}

// handleError logs failures with their taxonomy classification and records
// error metrics by type.
func (m *LoggingMiddleware) handleError(
	ctx context.Context,
	req *transport.Request,
	err error,
	requestID string,
	duration time.Duration,
	baseTags map[string]string,
) {
	errorType := llmerrors.Classify(err)

	errorTags := copyTags(baseTags)
	errorTags["error_type"] = string(errorType)

	m.metrics.IncrementCounter("llm.requests.errors", errorTags, 1)

	m.logger.ErrorContext(ctx, "provider request failed",
		"request_id", requestID,
		"model", req.Model,
		"family", req.Family.String(),
		"duration_ms", duration.Milliseconds(),
		"error_type", errorType,
		"error", err.Error(),
	)
}

// handleSuccess logs response details and records usage metrics, with
// configurable content redaction.
func (m *LoggingMiddleware) handleSuccess(
	ctx context.Context,
	req *transport.Request,
	resp *transport.Response,
	requestID string,
	duration time.Duration,
	baseTags map[string]string,
) {
	m.metrics.IncrementCounter("llm.requests.success", baseTags, 1)

	m.metrics.RecordHistogram("llm.tokens.prompt", baseTags, float64(resp.Usage.PromptTokens))
	m.metrics.RecordHistogram("llm.tokens.completion", baseTags, float64(resp.Usage.CompletionTokens))
	m.metrics.RecordHistogram("llm.tokens.total", baseTags, float64(resp.Usage.TotalTokens))
	if resp.Attempts > 1 {
		m.metrics.IncrementCounter("llm.requests.retried", baseTags, 1)
	}

	fields := []any{
		"request_id", requestID,
		"model", req.Model,
		"family", req.Family.String(),
		"duration_ms", duration.Milliseconds(),
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"attempts", resp.Attempts,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
	}

	if m.redactPrompts {
		fields = append(fields, "response_length", len(resp.Content))
	} else {
		fields = append(fields, "response_preview", truncate(resp.Content, responsePreviewLimit))
	}

	m.logger.InfoContext(ctx, "provider request completed", fields...)
}

// latestUserContent returns the content of the last user turn, which is the
// prompt the current call answers.
func latestUserContent(transcript domain.Transcript) (string, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == domain.RoleUser {
			return transcript[i].Content, true
		}
	}
	return "", false
}

// systemContent returns the system instructions when the transcript opens
// with them.
func systemContent(transcript domain.Transcript) (string, bool) {
	if len(transcript) > 0 && transcript[0].Role == domain.RoleSystem {
		return transcript[0].Content, true
	}
	return "", false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// copyTags creates independent copies of metric tag maps so one metric call
// cannot mutate another's tags.
func copyTags(original map[string]string) map[string]string {
	tagsCopy := make(map[string]string, len(original))
	maps.Copy(tagsCopy, original)
	return tagsCopy
}
