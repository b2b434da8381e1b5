// Package main is the benchy command line interface.
//
// Benchy runs model-invocation experiments against OpenRouter and AWS
// Bedrock backends: it resolves a task document and flags into an experiment
// request, drives the tool-orchestration loop to completion, optionally
// scores the final output against the task's expected answer, and persists
// the sealed result as JSON.
//
// # Basic Usage
//
// Run one experiment:
//
//	benchy run --model openai/gpt-4o --task configs/tasks/disease_normalization.yaml --score
//
// Fan a task across models:
//
//	benchy suite --task configs/tasks/disease_normalization.yaml \
//	  --models openai/gpt-4o,anthropic.claude-sonnet-4-20250514-v1:0 --samples 3
//
// Inspect the tool catalog:
//
//	benchy tools --config configs/tools.yaml
//
// # Environment Variables
//
//   - OPENROUTER_API_KEY: OpenRouter API key
//   - OPENROUTER_BASE_URL: override the OpenRouter endpoint
//   - AWS_REGION: Bedrock region; credentials resolve through the standard
//     AWS chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY, shared config, IAM)
//   - BENCHY_LOG_LEVEL, BENCHY_LOG_FORMAT, BENCHY_MAX_ROUNDS,
//     BENCHY_MAX_CONCURRENCY: engine overrides
//
// A .env file in the working directory is loaded at startup when present.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-benchy/internal/llm/configuration"
)

// Build information, populated by ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Best effort: a missing .env is the common case, not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "benchy",
		Short: "Benchmark LLMs across providers with tool-calling experiments",
		Long: `Benchy invokes models on OpenRouter and AWS Bedrock through one uniform
interface, drives multi-turn tool-calling conversations, and records every
run as a sealed JSON result: transcript, tool audit trail, token usage, and
terminal status.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.AddCommand(newRunCmd(), newSuiteCmd(), newToolsCmd(), newVersionCmd())
	return cmd
}

// setupLogging routes structured logs to stderr so stdout stays reserved for
// command output. Level and format come from the resolved observability
// configuration; --verbose forces debug regardless.
func setupLogging(verbose bool) {
	obs := engineConfig().Observability

	level := parseLogLevel(obs.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, opts)
	if strings.EqualFold(obs.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// engineConfig builds the engine configuration: defaults overlaid with
// credentials and overrides from the environment.
func engineConfig() *configuration.Config {
	cfg := configuration.DefaultConfig()
	cfg.ResolveFromEnv()
	return cfg
}
