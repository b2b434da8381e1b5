package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-benchy/internal/domain"
	"github.com/ahrav/go-benchy/internal/experiment"
	"github.com/ahrav/go-benchy/internal/llm"
	"github.com/ahrav/go-benchy/internal/results"
	"github.com/ahrav/go-benchy/internal/tasks"
	"github.com/ahrav/go-benchy/internal/tools"
)

func newSuiteCmd() *cobra.Command {
	var (
		flags       runFlags
		taskPath    string
		models      []string
		samples     int
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Fan one task across models and samples in parallel",
		Long: `Suite runs the same task against every listed model, optionally several
samples per model, with bounded parallelism. Each run is independent: its
own conversation, its own retry budget, and a failure in one never aborts
the others. Every result is persisted; a summary prints at the end.`,
		Example: `  benchy suite --task configs/tasks/disease_normalization.yaml \
    --models openai/gpt-4o,anthropic.claude-sonnet-4-20250514-v1:0 \
    --samples 3 --parallelism 4 --tools configs/tools.yaml --score`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd.Context(), taskPath, models, samples, parallelism, &flags)
		},
	}

	cmd.Flags().StringVar(&taskPath, "task", "", "YAML task document (required)")
	cmd.Flags().StringSliceVar(&models, "models", nil, "comma-separated model identifiers (required)")
	cmd.Flags().IntVar(&samples, "samples", 1, "runs per model")
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "concurrent runs (0 = engine default)")
	addRunFlags(cmd, &flags)
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("models")

	return cmd
}

func runSuite(ctx context.Context, taskPath string, models []string, samples, parallelism int, flags *runFlags) error {
	if samples < 1 {
		return fmt.Errorf("--samples must be at least 1, got %d", samples)
	}

	doc, err := tasks.Load(taskPath)
	if err != nil {
		return err
	}

	var registry *tools.Registry
	if flags.toolsPath != "" {
		registry, err = loadToolset(flags.toolsPath)
		if err != nil {
			return err
		}
	}

	requests := make([]domain.ExperimentRequest, 0, len(models)*samples)
	for _, model := range models {
		for sample := 0; sample < samples; sample++ {
			req := doc.Request(model)
			flags.apply(&req)
			if registry != nil {
				req.Tools = registry.Describe()
			}
			requests = append(requests, req)
		}
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

	outcomes := runner.RunSuite(ctx, requests, parallelism)

	store := results.NewStore(flags.outputDir)
	records := make([]results.Record, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Result == nil {
			continue
		}
		record := results.Record{Result: outcome.Result}
		if flags.score && outcome.Err == nil {
			record.Evaluation = scoreResult(outcome.Result, doc.Expected)
		}
		records = append(records, record)
	}
	paths, saveErr := store.SaveSuite(records)
	if saveErr != nil {
		slog.Error("failed to persist suite results", "error", saveErr, "saved", len(paths))
	}

	printSuite(os.Stdout, outcomes, records, flags.outputDir)

	summary := experiment.Summarize(outcomes)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d experiments failed", summary.Failed, summary.Total)
	}
	return saveErr
}

func printSuite(w io.Writer, outcomes []experiment.Outcome, records []results.Record, outputDir string) {
	// Evaluations line up with persisted records, not outcomes; index them
	// back by experiment ID for the per-entry lines.
	evals := make(map[string]float64, len(records))
	for _, record := range records {
		if record.Evaluation != nil {
			evals[record.Result.ExperimentID] = record.Evaluation.Accuracy
		}
	}

	fmt.Fprintf(w, "%-4s %-42s %-24s %-8s %8s %10s\n", "#", "MODEL", "STATUS", "ROUNDS", "TOKENS", "ACCURACY")
	for _, outcome := range outcomes {
		status := "failed"
		rounds, tokens := 0, int64(0)
		accuracy := "-"
		if outcome.Result != nil {
			status = string(outcome.Result.Status)
			rounds = outcome.Result.Rounds
			tokens = outcome.Result.Usage.TotalTokens
			if acc, ok := evals[outcome.Result.ExperimentID]; ok {
				accuracy = fmt.Sprintf("%.1f%%", acc*100)
			}
		} else if outcome.Err != nil {
			status = "failed: " + outcome.Err.Error()
			if len(status) > 24 {
				status = status[:24]
			}
		}
		fmt.Fprintf(w, "%-4d %-42s %-24s %-8d %8d %10s\n",
			outcome.Index+1, outcome.Request.Model, status, rounds, tokens, accuracy)
	}

	summary := experiment.Summarize(outcomes)
	fmt.Fprintf(w, "\n%d experiments: %d succeeded (%d retried), %d failed, %d total tokens\n",
		summary.Total, summary.Succeeded, summary.Retried, summary.Failed, summary.Usage.TotalTokens)
	if len(records) > 0 {
		fmt.Fprintf(w, "Results written to %s\n", outputDir)
	}
}
