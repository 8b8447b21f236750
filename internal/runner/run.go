package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"parareq/internal/caller"
	"parareq/internal/duckdb"
	"parareq/internal/request"
	"parareq/internal/sink"
	"parareq/internal/spec"
	"parareq/internal/tokens"
	"parareq/pkg/dispatch"
)

// RunParams carries the collaborators the CLI resolves before a run.
type RunParams struct {
	// APIKey authenticates calls; resolved from the configured env var.
	APIKey string
	// Caller overrides the HTTP caller, used by tests.
	Caller dispatch.Caller
	// Observer receives dispatch events (status tracking, the live
	// UI); may be nil.
	Observer dispatch.Observer
	// Verbose prints one line per dispatch event to Stderr.
	Verbose bool
	// NoColor disables ANSI styling.
	NoColor bool
	// Stderr receives verbose output.
	Stderr io.Writer
}

// RunResult summarizes one finished run.
type RunResult struct {
	RunID       string
	ResultsPath string
	Ingested    int
	Rejected    int
	Stats       dispatch.Stats
	Elapsed     time.Duration
}

// Run executes one batch: ingest, estimate, dispatch under the rate
// budgets, and record every outcome exactly once.
func Run(ctx context.Context, cfg spec.Config, params RunParams) (RunResult, error) {
	started := time.Now()
	runID, err := NewRunID()
	if err != nil {
		return RunResult{}, err
	}

	requests, err := request.LoadFile(cfg.RequestsFile)
	if err != nil {
		return RunResult{}, err
	}
	if len(requests) == 0 {
		return RunResult{}, fmt.Errorf("requests file %s contains no requests", cfg.RequestsFile)
	}

	endpoint, err := caller.EndpointFromURL(cfg.RequestURL)
	if err != nil {
		return RunResult{}, err
	}
	estimator, err := tokens.NewEstimator(endpoint, cfg.TokenEncoding)
	if err != nil {
		return RunResult{}, err
	}

	resultsPath := sink.NonduplicatePath(cfg.ResultsFile)
	jsonl, err := sink.NewJSONL(resultsPath)
	if err != nil {
		return RunResult{}, err
	}
	resultSink := dispatch.Sink(jsonl)
	if cfg.ResultsDB != "" {
		store, err := duckdb.Open(cfg.ResultsDB, runID)
		if err != nil {
			jsonl.Close()
			return RunResult{}, err
		}
		defer store.Close()
		resultSink = dispatch.MultiSink{jsonl, store}
	}

	apiCaller := params.Caller
	if apiCaller == nil {
		apiCaller, err = caller.New(cfg.RequestURL, params.APIKey, nil)
		if err != nil {
			jsonl.Close()
			return RunResult{}, err
		}
	}

	budget := dispatch.NewBudget(cfg.Limits.RequestsPerMinute, cfg.Limits.TokensPerMinute, time.Now())
	records, rejected, err := buildRecords(requests, estimator, budget.MaxCost(), cfg.Retry.MaxAttempts, resultSink)
	if err != nil {
		jsonl.Close()
		return RunResult{}, err
	}

	var observers dispatch.MultiObserver
	if params.Verbose {
		observers = append(observers, newVerboseObserver(params.Stderr, params.NoColor))
	}
	if params.Observer != nil {
		observers = append(observers, params.Observer)
	}

	dispatcher := dispatch.New(budget, apiCaller, resultSink, dispatch.Options{
		MaxInFlight:       cfg.Limits.MaxInFlight,
		CallTimeout:       time.Duration(cfg.CallTimeoutMs) * time.Millisecond,
		RateLimitCooldown: time.Duration(cfg.RateLimitCooldownMs) * time.Millisecond,
		Backoff: dispatch.BackoffPolicy{
			Base:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
			Growth: cfg.Retry.GrowthFactor,
			Max:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		},
		Observer: observers,
	})

	stats, runErr := dispatcher.Run(ctx, records)
	if err := jsonl.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close results file: %w", err)
	}

	result := RunResult{
		RunID:       runID,
		ResultsPath: resultsPath,
		Ingested:    len(requests),
		Rejected:    rejected,
		Stats:       stats,
		Elapsed:     time.Since(started),
	}
	if runErr != nil {
		return result, runErr
	}

	if stats.Failed+rejected > 0 {
		renamed, err := sink.MarkWithErrors(resultsPath)
		if err != nil {
			return result, err
		}
		result.ResultsPath = renamed
	}
	return result, nil
}
