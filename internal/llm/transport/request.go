package transport

import (
	"time"

	"github.com/ahrav/go-benchy/internal/domain"
)

// Request is the provider-agnostic envelope for one model invocation.
// It carries the full conversation so far; adapters translate it into
// their backend's wire format.
type Request struct {
	// TraceID correlates log lines across one provider call and its retries.
	TraceID string

	// ExperimentID ties the call back to its experiment.
	ExperimentID string

	// Model is the raw model identifier. Family is its classified backend,
	// filled by the client before the request enters the pipeline.
	Model  string
	Family domain.ModelFamily

	// Conversation is the transcript to submit, in strict turn order.
	Conversation domain.Transcript

	// Tools lists the definitions exposed on this call, in declaration order.
	Tools []domain.ToolDefinition

	// Temperature is the sampling temperature in [0, 2]. Adapters clamp it
	// to their backend's accepted range.
	Temperature float64

	// ThinkingMode requests extended reasoning on backends that support it.
	ThinkingMode bool

	// MaxTokens caps completion tokens for this call.
	MaxTokens int64

	// Timeout bounds this call; zero defers to the engine default.
	Timeout time.Duration

	// Tags carries free-form labels that middleware attaches to logs and
	// metrics.
	Tags map[string]string
}

// Response is the normalized outcome of one successful provider call.
type Response struct {
	// Content is the prose portion of the model turn, possibly empty when
	// the model only requested tools.
	Content string

	// ToolCalls lists requested tool invocations in provider emission order.
	ToolCalls []domain.ToolCall

	// FinishReason is the normalized stop reason.
	FinishReason domain.FinishReason

	// Usage carries token counts and latency for this call.
	Usage NormalizedUsage

	// Attempts is the number of provider attempts this call consumed.
	// The retry middleware overwrites it; without retries it is 1.
	Attempts int

	// Provider and Model echo where the response came from.
	Provider string
	Model    string
}

// NormalizedUsage standardizes token accounting across providers.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// TokenUsage converts wire-level usage into the domain accounting type.
func (u NormalizedUsage) TokenUsage() domain.TokenUsage {
	return domain.TokenUsage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}
