package experiment

import (
	"context"
	"sync"

	"github.com/ahrav/go-benchy/internal/domain"
	llmerrors "github.com/ahrav/go-benchy/internal/llm/errors"
)

// Outcome pairs one suite entry with its run outcome. Request is the entry
// as submitted; the executed ID and applied defaults travel on Result.
type Outcome struct {
	// Index is the entry's position in the submitted slice.
	Index int

	// Request is the submitted experiment request.
	Request domain.ExperimentRequest

	// Result is the sealed run result, nil when the entry failed before its
	// first provider call.
	Result *domain.ExperimentResult

	// Err is the entry's terminal error, nil on success.
	Err error
}

// RunSuite executes the requests with bounded parallelism and returns one
// outcome per entry, in input order regardless of completion order.
//
// Entries are isolated: a failing entry records its error in its outcome and
// never cancels or aborts its siblings. At most parallelism entries run at
// once; zero or negative selects the configured MaxConcurrency. Entries
// beyond the bound queue until a slot frees. Cancelling ctx stops entries
// that have not started a round yet and is otherwise observed at the
// runner's round granularity.
func (r *Runner) RunSuite(ctx context.Context, requests []domain.ExperimentRequest, parallelism int) []Outcome {
	outcomes := make([]Outcome, len(requests))
	if len(requests) == 0 {
		return outcomes
	}
	if parallelism <= 0 {
		parallelism = r.config.MaxConcurrency
	}

	r.logger.Info("suite starting",
		"experiments", len(requests),
		"parallelism", parallelism)

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			req := requests[i]
			outcome := Outcome{Index: i, Request: req}
			if err := r.suiteGate(&req, len(requests)); err != nil {
				outcome.Err = err
				outcomes[i] = outcome
				return
			}
			outcome.Result, outcome.Err = r.Run(ctx, &req)
			outcomes[i] = outcome
		}()
	}
	wg.Wait()

	summary := Summarize(outcomes)
	r.logger.Info("suite completed",
		"experiments", summary.Total,
		"succeeded", summary.Succeeded,
		"retried", summary.Retried,
		"failed", summary.Failed,
		"total_tokens", summary.Usage.TotalTokens)
	return outcomes
}

// suiteGate enforces the multi-task capability for suites with more than one
// entry. Classification or routing problems are left for Run to surface as
// the entry's real error.
func (r *Runner) suiteGate(req *domain.ExperimentRequest, size int) error {
	if size < 2 {
		return nil
	}
	family, err := domain.ClassifyModel(req.Model)
	if err != nil {
		return nil
	}
	caps, err := r.client.Capabilities(req.Model)
	if err != nil {
		return nil
	}
	if !caps.MultiTask {
		return &llmerrors.CapabilityError{
			Model:   req.Model,
			Family:  family.String(),
			Feature: "multi-task suites",
		}
	}
	return nil
}

// SuiteSummary aggregates the outcomes of one suite run.
type SuiteSummary struct {
	// Total is the number of entries in the suite.
	Total int `json:"total"`

	// Succeeded counts entries that finished without error, retried ones
	// included.
	Succeeded int `json:"succeeded"`

	// Retried counts the successful entries that needed more than one
	// provider attempt somewhere along the way.
	Retried int `json:"retried"`

	// Failed counts entries that ended with an error.
	Failed int `json:"failed"`

	// Rounds sums the provider calls issued across all entries.
	Rounds int `json:"rounds"`

	// Usage sums token usage across all entries, partial results included.
	Usage domain.TokenUsage `json:"usage"`
}

// Summarize folds suite outcomes into aggregate counts. Partial results from
// failed entries still contribute their usage and rounds; they paid for real
// provider calls.
func Summarize(outcomes []Outcome) SuiteSummary {
	summary := SuiteSummary{Total: len(outcomes)}
	for _, outcome := range outcomes {
		if outcome.Result != nil {
			summary.Usage.Add(outcome.Result.Usage)
			summary.Rounds += outcome.Result.Rounds
		}
		switch {
		case outcome.Err != nil:
			summary.Failed++
		case outcome.Result != nil && outcome.Result.Status == domain.StatusRetried:
			summary.Succeeded++
			summary.Retried++
		default:
			summary.Succeeded++
		}
	}
	return summary
}
