package domain

import (
	"errors"
	"fmt"
	"time"
)

// Experiment request errors.
var (
	// ErrInvalidExperiment indicates a request that fails structural validation.
	ErrInvalidExperiment = errors.New("invalid experiment request")

	// ErrDuplicateTool indicates two tool definitions sharing one name.
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrMissingPrompt indicates a request with neither a task prompt nor an
	// override.
	ErrMissingPrompt = errors.New("experiment has no prompt")
)

// TaskPayload carries the benchmark task an experiment exercises.
type TaskPayload struct {
	// Name identifies the task; it becomes part of the persisted result name.
	Name string `json:"name" validate:"required"`

	// Description is operator-facing context, never sent to the model.
	Description string `json:"description,omitempty"`

	// Prompt is the task's default user prompt. A request-level
	// PromptOverride takes precedence.
	Prompt string `json:"prompt,omitempty"`

	// Expected holds the reference answer fields used for scoring.
	Expected map[string]any `json:"expected,omitempty"`
}

// ExperimentRequest is a fully specified invocation of one model on one task.
// It is self-contained: everything a runner needs to execute and replay the
// experiment travels with the request.
type ExperimentRequest struct {
	// ID correlates the request with its result and log lines.
	ID string `json:"id" validate:"required"`

	// Model is the raw model identifier; its shape selects the provider family.
	Model string `json:"model" validate:"required"`

	// SystemInstructions optionally seeds the transcript's system turn.
	SystemInstructions string `json:"system_instructions,omitempty"`

	// PromptOverride replaces the task prompt when non-empty.
	PromptOverride string `json:"prompt_override,omitempty"`

	// Temperature is the sampling temperature in [0, 2].
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`

	// ThinkingMode requests extended reasoning on backends that support it.
	ThinkingMode bool `json:"thinking_mode"`

	// Tools lists the definitions exposed to the model, in declaration order.
	// Names must be unique within a request.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// Task is the benchmark payload this experiment runs.
	Task TaskPayload `json:"task"`

	// MaxRounds bounds the invoke/execute loop; 0 selects the engine default.
	MaxRounds int `json:"max_rounds" validate:"gte=0"`

	// MaxTokens caps completion tokens per provider call; 0 selects the
	// engine default.
	MaxTokens int64 `json:"max_tokens" validate:"gte=0"`

	// Timeout bounds each provider call; 0 selects the engine default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// CloneExpected returns a copy of the expected-answer map that is safe to
// hand to scorers.
func (t TaskPayload) CloneExpected() map[string]any { return cloneAnyMap(t.Expected) }

// EffectivePrompt resolves the user prompt: the override when present,
// otherwise the task prompt.
func (r *ExperimentRequest) EffectivePrompt() string {
	if r.PromptOverride != "" {
		return r.PromptOverride
	}
	return r.Task.Prompt
}

// SeedTranscript builds the round-zero transcript from the request's system
// instructions and effective prompt.
func (r *ExperimentRequest) SeedTranscript() Transcript {
	return NewTranscript(r.SystemInstructions, r.EffectivePrompt())
}

// Validate checks the request's structural constraints. It does not classify
// the model identifier or consult provider capabilities; both happen at
// dispatch so that validation stays offline and side-effect free.
func (r *ExperimentRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExperiment, err)
	}
	if r.EffectivePrompt() == "" {
		return fmt.Errorf("%w: task %q", ErrMissingPrompt, r.Task.Name)
	}

	seen := make(map[string]struct{}, len(r.Tools))
	for _, tool := range r.Tools {
		if err := tool.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidExperiment, err)
		}
		if _, dup := seen[tool.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateTool, tool.Name)
		}
		seen[tool.Name] = struct{}{}
	}
	return nil
}
