package domain

import (
	"encoding/json"
	"time"
)

// FinishReason is the normalized reason a provider stopped generating.
// Adapters map each backend's native stop reasons onto this set.
type FinishReason string

const (
	// FinishStop marks a natural end of turn.
	FinishStop FinishReason = "stop"

	// FinishToolUse marks a turn that requests tool invocations.
	FinishToolUse FinishReason = "tool_use"

	// FinishLength marks truncation at the completion token cap.
	FinishLength FinishReason = "length"

	// FinishContentFilter marks provider-side content filtering.
	FinishContentFilter FinishReason = "content_filter"

	// FinishUnknown marks stop reasons with no normalized mapping.
	FinishUnknown FinishReason = "unknown"
)

// TokenUsage aggregates token counts across the provider calls of a run.
// Counts from failed attempts are not included; only calls that produced a
// response contribute.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// Add accumulates another usage sample into the receiver.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// ToolCallRecord is the audit entry for one tool invocation.
type ToolCallRecord struct {
	// Sequence is the 1-based position of this invocation within the run.
	Sequence int `json:"sequence"`

	// Round is the loop round whose model turn requested the invocation.
	Round int `json:"round"`

	// Tool is the requested tool name, recorded even when unknown.
	Tool string `json:"tool"`

	// Arguments is the raw argument object as the model produced it.
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// Result holds the tool output on success; Error carries the failure
	// text otherwise. Exactly one of the two is set.
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	// DurationMS is the wall-clock execution time in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// ExperimentStatus classifies how a run concluded.
type ExperimentStatus string

const (
	// StatusSuccess marks a run whose provider calls all succeeded first try.
	StatusSuccess ExperimentStatus = "success"

	// StatusRetried marks a successful run in which at least one provider
	// call needed more than one attempt.
	StatusRetried ExperimentStatus = "retried_then_succeeded"

	// StatusFailed marks a run that terminated with an error.
	StatusFailed ExperimentStatus = "failed"
)

// ExperimentResult is the outcome of one experiment run: the final output,
// the full transcript, every tool invocation, aggregated token usage, and
// the terminal status. Runners build it incrementally and call Seal before
// returning it; consumers only ever see sealed snapshots.
type ExperimentResult struct {
	ExperimentID string `json:"experiment_id"`
	Task         string `json:"task"`
	Model        string `json:"model"`
	Provider     string `json:"provider,omitempty"`

	Status ExperimentStatus `json:"status"`

	// FinalOutput is the model's last prose answer, empty for failed runs
	// that never produced one.
	FinalOutput string `json:"final_output,omitempty"`

	// Transcript is the complete conversation, one entry per turn.
	Transcript Transcript `json:"transcript,omitempty"`

	// ToolCalls records every tool invocation in execution order.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`

	Usage TokenUsage `json:"usage"`

	// Rounds counts the provider calls the loop issued.
	Rounds int `json:"rounds"`

	// Retried reports whether any provider call needed more than one attempt.
	Retried bool `json:"retried,omitempty"`

	// ErrorKind and ErrorDetail classify the terminal failure of failed runs.
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	sealed bool
}

// Seal deep-copies the result into an immutable snapshot. Mutations of the
// receiver or its slices after sealing do not reach the returned copy.
func (r *ExperimentResult) Seal() *ExperimentResult {
	snapshot := *r
	snapshot.Transcript = r.Transcript.Clone()
	if r.ToolCalls != nil {
		records := make([]ToolCallRecord, len(r.ToolCalls))
		for i, rec := range r.ToolCalls {
			records[i] = rec
			if len(rec.Arguments) > 0 {
				records[i].Arguments = append(json.RawMessage(nil), rec.Arguments...)
			}
		}
		snapshot.ToolCalls = records
	}
	snapshot.sealed = true
	return &snapshot
}

// Sealed reports whether this instance is an immutable snapshot.
func (r *ExperimentResult) Sealed() bool { return r.sealed }

// Duration is the wall-clock time from start to completion.
func (r *ExperimentResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
