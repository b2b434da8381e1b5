package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/experiment"
	"github.com/ahrav/go-benchy/internal/llm"
	"github.com/ahrav/go-benchy/internal/results"
	"github.com/ahrav/go-benchy/internal/scoring"
	"github.com/ahrav/go-benchy/internal/tasks"
	"github.com/ahrav/go-benchy/internal/tools"
)

// runFlags are the execution flags shared by run and suite.
type runFlags struct {
	system      string
	temperature float64
	thinking    bool
	toolsPath   string
	maxRounds   int
	timeout     time.Duration
	outputDir   string
	score       bool
}

func addRunFlags(cmd *cobra.Command, opts *runFlags) {
	flags := cmd.Flags()
	flags.StringVar(&opts.system, "system", "", "system instructions for the conversation")
	flags.Float64Var(&opts.temperature, "temperature", 0, "sampling temperature in [0, 2] (0 = task/engine default)")
	flags.BoolVar(&opts.thinking, "thinking", false, "request extended reasoning (Bedrock backends only)")
	flags.StringVar(&opts.toolsPath, "tools", "", "YAML tool configuration exposing tools to the model")
	flags.IntVar(&opts.maxRounds, "max-rounds", 0, "maximum model rounds (0 = task/engine default)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-provider-call timeout (0 = engine default)")
	flags.StringVar(&opts.outputDir, "output-dir", "results", "directory for result JSON files")
	flags.BoolVar(&opts.score, "score", false, "score the final output against the task's expected answer")
}

// apply overlays explicitly set flags onto a request built from a task
// document. Zero values leave the document's defaults in place.
func (o *runFlags) apply(req *domain.ExperimentRequest) {
	if o.system != "" {
		req.SystemInstructions = o.system
	}
	if o.temperature != 0 {
		req.Temperature = o.temperature
	}
	if o.thinking {
		req.ThinkingMode = true
	}
	if o.maxRounds > 0 {
		req.MaxRounds = o.maxRounds
	}
	if o.timeout > 0 {
		req.Timeout = o.timeout
	}
}

// loadToolset builds a registry from a tool configuration file.
func loadToolset(path string) (*tools.Registry, error) {
	cfg, err := tools.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return tools.NewRegistryFromConfig(cfg, nil)
}

func newRunCmd() *cobra.Command {
	var (
		flags    runFlags
		model    string
		taskPath string
		prompt   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one experiment against one model",
		Example: `  # Run a task document and score the answer
  benchy run --model openai/gpt-4o --task configs/tasks/disease_normalization.yaml --score

  # Ad hoc prompt with tools and extended reasoning on Bedrock
  benchy run --model anthropic.claude-sonnet-4-20250514-v1:0 \
    --prompt "Normalize 'arthritis' and answer with JSON" \
    --tools configs/tools.yaml --thinking`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd.Context(), model, taskPath, prompt, &flags)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model identifier (required)")
	cmd.Flags().StringVar(&taskPath, "task", "", "YAML task document")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt text (replaces the task prompt when both are given)")
	addRunFlags(cmd, &flags)
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runRun(ctx context.Context, model, taskPath, prompt string, flags *runFlags) error {
	var req domain.ExperimentRequest
	switch {
	case taskPath != "":
		doc, err := tasks.Load(taskPath)
		if err != nil {
			return err
		}
		req = doc.Request(model)
		if prompt != "" {
			req.PromptOverride = prompt
		}
	case prompt != "":
		req = domain.ExperimentRequest{
			Model: model,
			Task:  domain.TaskPayload{Name: "adhoc", Prompt: prompt},
		}
	default:
		return errors.New("either --task or --prompt is required")
	}
	flags.apply(&req)

	var registry *tools.Registry
	if flags.toolsPath != "" {
		var err error
		registry, err = loadToolset(flags.toolsPath)
		if err != nil {
			return err
		}
		req.Tools = registry.Describe()
	}

	cfg := engineConfig()
	client, err := llm.NewClientWithObservability(cfg, slog.Default(), nil)
	if err != nil {
		return fmt.Errorf("initialize llm client: %w", err)
	}

	var exec experiment.ToolExecutor
	if registry != nil {
		exec = registry
	}
	runner := experiment.NewRunner(client, exec, cfg, slog.Default())

	result, runErr := runner.Run(ctx, &req)
	if result == nil {
		// Nothing ran: validation or capability failure, nothing to persist.
		return runErr
	}

	record := results.Record{Result: result}
	if flags.score && runErr == nil {
		record.Evaluation = scoreResult(result, req.Task.Expected)
	}

	store := results.NewStore(flags.outputDir)
	path, saveErr := store.SaveResult(record)
	if saveErr != nil {
		slog.Error("failed to persist result", "error", saveErr)
	}

	printResult(os.Stdout, record, path)
	if runErr != nil {
		return runErr
	}
	return saveErr
}

// scoreResult evaluates a successful run's final output, logging rather than
// failing when the task is unscorable.
func scoreResult(result *domain.ExperimentResult, expected map[string]any) *scoring.Evaluation {
	eval, err := scoring.Score(result.FinalOutput, expected)
	if err != nil {
		if errors.Is(err, scoring.ErrNoExpectation) {
			slog.Warn("task declares no expected answer, skipping scoring", "task", result.Task)
		} else {
			slog.Warn("scoring failed", "task", result.Task, "error", err)
		}
		return nil
	}
	return eval
}

func printResult(w io.Writer, record results.Record, path string) {
	result := record.Result
	fmt.Fprintf(w, "Experiment %s\n", result.ExperimentID)
	fmt.Fprintf(w, "  Task:       %s\n", result.Task)
	fmt.Fprintf(w, "  Model:      %s (%s)\n", result.Model, result.Provider)
	fmt.Fprintf(w, "  Status:     %s\n", result.Status)
	fmt.Fprintf(w, "  Rounds:     %d\n", result.Rounds)
	fmt.Fprintf(w, "  Tool calls: %d\n", len(result.ToolCalls))
	fmt.Fprintf(w, "  Tokens:     %d in / %d out / %d total\n",
		result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.TotalTokens)
	fmt.Fprintf(w, "  Duration:   %s\n", result.Duration().Round(time.Millisecond))
	if result.ErrorKind != "" {
		fmt.Fprintf(w, "  Error:      %s: %s\n", result.ErrorKind, result.ErrorDetail)
	}
	if result.FinalOutput != "" {
		fmt.Fprintf(w, "  Output:     %s\n", result.FinalOutput)
	}
	if record.Evaluation != nil {
		eval := record.Evaluation
		fmt.Fprintf(w, "  Accuracy:   %.1f%% (%d/%d fields)\n", eval.Accuracy*100, eval.Matched, eval.Total)
	}
	if path != "" {
		fmt.Fprintf(w, "  Saved:      %s\n", path)
	}
}
