package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/llm/transport"
	"github.com/ahrav/go-benchy/internal/tools"
)

// ErrMaxRoundsExceeded indicates a model that kept requesting tools past the
// configured round limit. It is distinct from provider-level failures: the
// pipeline worked, the conversation just never converged.
var ErrMaxRoundsExceeded = errors.New("maximum rounds exceeded")

// LoopState is the orchestration loop's position in its state machine.
type LoopState uint8

const (
	// StateAwaitingModel means the next step is a provider call.
	StateAwaitingModel LoopState = iota

	// StateAwaitingTool means the model requested tools that have not all
	// been executed yet.
	StateAwaitingTool

	// StateSucceeded is the terminal state of a run that produced a final
	// answer.
	StateSucceeded

	// StateFailed is the terminal state of a run that hit a provider
	// failure, the round limit, or cancellation.
	StateFailed
)

// String returns the canonical lowercase name of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateAwaitingTool:
		return "awaiting_tool"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final. Terminal states never
// transition again; a finished loop is discarded, not resumed.
func (s LoopState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// loop drives one experiment's invoke/execute cycle to a terminal state.
// Each round issues exactly one provider call; when the response requests
// tools they are executed sequentially in emission order and their results
// appended to the transcript before the next round begins. A loop is single
// use: the runner constructs a fresh one per run and reads the outcome off
// the shared result.
type loop struct {
	client ModelClient
	tools  ToolExecutor
	req    *domain.ExperimentRequest
	logger *slog.Logger

	// maxRounds bounds the number of provider calls.
	maxRounds int

	// result accumulates transcript, records, and usage as the loop runs.
	// The runner owns it and seals it after run returns.
	result *domain.ExperimentResult

	state    LoopState
	sequence int
}

// run executes rounds until a terminal state is reached and returns the
// terminal error, nil on success. Cancellation is observed at round
// granularity: an in-flight provider call runs to completion or timeout, but
// no new round starts once the context is done.
func (l *loop) run(ctx context.Context) error {
	for round := 1; ; round++ {
		if round > l.maxRounds {
			l.state = StateFailed
			return fmt.Errorf("%w: no final answer after %d rounds", ErrMaxRoundsExceeded, l.maxRounds)
		}
		if err := ctx.Err(); err != nil {
			l.state = StateFailed
			return fmt.Errorf("run cancelled before round %d: %w", round, err)
		}

		resp, err := l.modelRound(ctx, round)
		if err != nil {
			l.state = StateFailed
			return err
		}

		l.result.Transcript = l.result.Transcript.Append(domain.Turn{
			Role:      domain.RoleModel,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			l.state = StateSucceeded
			l.result.FinalOutput = resp.Content
			return nil
		}

		l.state = StateAwaitingTool
		if err := l.toolRound(ctx, round, resp.ToolCalls); err != nil {
			l.state = StateFailed
			return err
		}
	}
}

// modelRound issues one provider call through the resilient client and folds
// its usage into the result. Usage from failed attempts never reaches this
// point; the client only reports usage for the attempt that succeeded.
func (l *loop) modelRound(ctx context.Context, round int) (*transport.Response, error) {
	l.state = StateAwaitingModel
	l.result.Rounds = round

	l.logger.Debug("model round starting",
		"experiment_id", l.req.ID,
		"round", round,
		"turns", len(l.result.Transcript))

	resp, err := l.client.Invoke(ctx, &transport.Request{
		ExperimentID: l.req.ID,
		Model:        l.req.Model,
		Conversation: l.result.Transcript,
		Tools:        l.req.Tools,
		Temperature:  l.req.Temperature,
		ThinkingMode: l.req.ThinkingMode,
		MaxTokens:    l.req.MaxTokens,
		Timeout:      l.req.Timeout,
		Tags: map[string]string{
			"task":  l.req.Task.Name,
			"round": strconv.Itoa(round),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("round %d: %w", round, err)
	}

	l.result.Usage.Add(resp.Usage.TokenUsage())
	if resp.Attempts > 1 {
		l.result.Retried = true
	}
	if resp.Provider != "" {
		l.result.Provider = resp.Provider
	}
	return resp, nil
}

// toolRound executes the round's requested tool calls sequentially, in the
// order the model emitted them, with no reordering or deduplication. Each
// invocation gets its own failure boundary: a failing tool becomes a
// tool-result turn describing the failure so the model can react, and the
// loop continues.
func (l *loop) toolRound(ctx context.Context, round int, calls []domain.ToolCall) error {
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled during round %d tool execution: %w", round, err)
		}

		l.sequence++
		record := domain.ToolCallRecord{
			Sequence:  l.sequence,
			Round:     round,
			Tool:      call.Name,
			Arguments: call.Arguments,
		}

		start := time.Now()
		output, err := l.invokeTool(ctx, call)
		record.DurationMS = time.Since(start).Milliseconds()

		content := output
		if err != nil {
			record.Error = err.Error()
			content = fmt.Sprintf("Error executing tool %q: %v", call.Name, err)
			l.logger.Warn("tool invocation failed",
				"experiment_id", l.req.ID,
				"tool", call.Name,
				"round", round,
				"error", err)
		} else {
			record.Result = output
			l.logger.Debug("tool invocation completed",
				"experiment_id", l.req.ID,
				"tool", call.Name,
				"round", round,
				"duration_ms", record.DurationMS)
		}

		l.result.ToolCalls = append(l.result.ToolCalls, record)
		l.result.Transcript = l.result.Transcript.Append(domain.Turn{
			Role:       domain.RoleToolResult,
			Content:    content,
			ToolCallID: call.ID,
		})
	}

	l.state = StateAwaitingModel
	return nil
}

// invokeTool dispatches one call to the registry. A run wired without any
// executor treats every requested name as unknown, which the failure
// boundary above converts into a tool-result turn like any other miss.
func (l *loop) invokeTool(ctx context.Context, call domain.ToolCall) (string, error) {
	if l.tools == nil {
		return "", fmt.Errorf("%w: %q", tools.ErrToolNotFound, call.Name)
	}
	return l.tools.Invoke(ctx, call.Name, call.Arguments)
}
