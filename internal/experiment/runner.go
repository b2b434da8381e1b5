// Package experiment executes benchmark experiments end to end. A Runner
// validates the request, gates it against the target backend's capabilities,
// then drives the invoke/execute orchestration loop until the model produces
// a final answer or the run fails. Every run yields a sealed
// domain.ExperimentResult carrying the full transcript, tool audit trail,
// and aggregated token usage, whether it succeeded or not.
package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
	"github.com/ahrav/go-benchy/internal/llm/transport"
)

// errNilRequest rejects a nil experiment request before any work starts.
var errNilRequest = errors.New("experiment request must not be nil")

// ModelClient is the slice of the LLM client the runner depends on: one
// invocation entry point and a capability probe that costs no provider call.
// llm.Client satisfies it.
type ModelClient interface {
	Invoke(ctx context.Context, req *transport.Request) (*transport.Response, error)
	Capabilities(model string) (domain.Capabilities, error)
}

// ToolExecutor dispatches one named tool invocation with raw JSON arguments.
// tools.Registry satisfies it.
type ToolExecutor interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Runner executes experiments against a shared client and tool registry.
// A Runner is immutable after construction and safe for concurrent use; each
// run gets its own loop and result.
type Runner struct {
	client ModelClient
	tools  ToolExecutor
	config *configuration.Config
	logger *slog.Logger
}

// NewRunner creates a runner over the given client and tool executor. A nil
// config selects engine defaults; a nil tool executor leaves every requested
// tool unknown, which runs report as tool-result failures rather than
// aborting. A nil logger falls back to slog.Default.
func NewRunner(client ModelClient, tools ToolExecutor, cfg *configuration.Config, logger *slog.Logger) *Runner {
	if cfg == nil {
		cfg = configuration.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client: client,
		tools:  tools,
		config: cfg,
		logger: logger.With("component", "experiment_runner"),
	}
}

// Run executes one experiment to completion.
//
// Failures before the first provider call (structural validation, model
// classification, capability gates) return a nil result: nothing ran, so
// there is nothing to record. Failures after dispatch return the sealed
// partial result alongside the error, preserving the transcript and usage
// accumulated up to the failure. Successful runs return the sealed result
// and a nil error.
func (r *Runner) Run(ctx context.Context, req *domain.ExperimentRequest) (*domain.ExperimentResult, error) {
	if req == nil {
		return nil, errNilRequest
	}

	// Work on a copy so filling defaults never mutates the caller's request.
	run := *req
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.MaxRounds <= 0 {
		run.MaxRounds = r.config.MaxRounds
	}
	if run.MaxTokens <= 0 {
		run.MaxTokens = r.config.MaxTokens
	}
	if run.Timeout <= 0 {
		run.Timeout = r.config.HTTPTimeout
	}

	if err := run.Validate(); err != nil {
		return nil, err
	}

	family, err := domain.ClassifyModel(run.Model)
	if err != nil {
		return nil, err
	}
	caps, err := r.client.Capabilities(run.Model)
	if err != nil {
		return nil, err
	}
	if err := checkCapabilities(&run, caps, family); err != nil {
		return nil, err
	}

	result := &domain.ExperimentResult{
		ExperimentID: run.ID,
		Task:         run.Task.Name,
		Model:        run.Model,
		Provider:     family.String(),
		Transcript:   run.SeedTranscript(),
		StartedAt:    time.Now().UTC(),
	}

	r.logger.Info("experiment starting",
		"experiment_id", run.ID,
		"task", run.Task.Name,
		"model", run.Model,
		"family", family.String(),
		"tools", len(run.Tools),
		"max_rounds", run.MaxRounds)

	l := &loop{
		client:    r.client,
		tools:     r.tools,
		req:       &run,
		logger:    r.logger,
		maxRounds: run.MaxRounds,
		result:    result,
	}
	runErr := l.run(ctx)
	result.CompletedAt = time.Now().UTC()

	if runErr != nil {
		result.Status = domain.StatusFailed
		result.ErrorKind = classifyRunError(runErr)
		result.ErrorDetail = runErr.Error()
		r.logger.Error("experiment failed",
			"experiment_id", run.ID,
			"task", run.Task.Name,
			"model", run.Model,
			"rounds", result.Rounds,
			"error_kind", result.ErrorKind,
			"error", runErr)
		return result.Seal(), runErr
	}

	result.Status = domain.StatusSuccess
	if result.Retried {
		result.Status = domain.StatusRetried
	}
	r.logger.Info("experiment completed",
		"experiment_id", run.ID,
		"task", run.Task.Name,
		"model", run.Model,
		"status", string(result.Status),
		"rounds", result.Rounds,
		"tool_calls", len(result.ToolCalls),
		"total_tokens", result.Usage.TotalTokens,
		"duration_ms", result.Duration().Milliseconds())
	return result.Seal(), nil
}

// checkCapabilities gates the request against the backend's feature surface
// before any network call. The client re-checks per-call features on each
// invocation; this adds the request-level gates only the runner can see,
// such as prompt overrides.
func checkCapabilities(req *domain.ExperimentRequest, caps domain.Capabilities, family domain.ModelFamily) error {
	capErr := func(feature string) error {
		return &llmerrors.CapabilityError{
			Model:   req.Model,
			Family:  family.String(),
			Feature: feature,
		}
	}

	if req.ThinkingMode && !caps.ThinkingMode {
		return capErr("thinking mode")
	}
	if len(req.Tools) > 0 && !caps.Tools {
		return capErr("tool calling")
	}
	if req.Temperature != 0 && !caps.Temperature {
		return capErr("temperature control")
	}
	if req.SystemInstructions != "" && !caps.SystemInstructions {
		return capErr("system instructions")
	}
	if req.PromptOverride != "" && !caps.CustomPrompts {
		return capErr("custom prompts")
	}
	return nil
}

// classifyRunError maps a terminal run error onto the error-kind label
// recorded on failed results. Loop-level outcomes take precedence over the
// provider taxonomy.
func classifyRunError(err error) string {
	switch {
	case errors.Is(err, ErrMaxRoundsExceeded):
		return "max_rounds_exceeded"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return string(llmerrors.Classify(err))
}
