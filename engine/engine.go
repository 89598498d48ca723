// Package engine orchestrates the generate-validate-retry loop: it feeds
// definitions to the oracle, validates each candidate artifact twice, and
// records exactly one terminal disposition per definition in the registry.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinsight/takforge/oracle"
	"github.com/clinsight/takforge/registry"
	"github.com/clinsight/takforge/tak"
	"github.com/clinsight/takforge/tak/template"
)

// Options configure one engine instance.
type Options struct {
	// MaxAttempts is the per-definition oracle budget. Oracle failures
	// consume attempts like rejected artifacts do.
	MaxAttempts int
	// OutputDir is the root of the artifact tree.
	OutputDir string
	// Workers bounds concurrent definitions in flight.
	Workers int
	// TestMode caps a run at one definition, for cheap smoke checks.
	TestMode bool
	// Force regenerates definitions the registry already resolved.
	Force bool
}

// Engine drives definitions to a terminal disposition.
type Engine struct {
	oracle    oracle.Oracle
	registry  *registry.Registry
	templates *template.Repository
	opts      Options
	logger    *zap.SugaredLogger
}

// New wires an engine. A nil logger disables engine logging.
func New(o oracle.Oracle, reg *registry.Registry, templates *template.Repository, opts Options, logger *zap.SugaredLogger) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		oracle:    o,
		registry:  reg,
		templates: templates,
		opts:      opts,
		logger:    logger,
	}
}

// Outcome is the result of processing one definition.
type Outcome struct {
	ID           string
	Disposition  registry.Disposition
	OutputPath   string
	AttemptsUsed int
	TokenCost    int
	// Skipped means the registry already held a resolution and no oracle
	// call was made.
	Skipped bool
	// Reason explains invalid and needs_review dispositions.
	Reason string
}

// Summary aggregates one run.
type Summary struct {
	RunID       string
	Processed   int
	Valid       int
	Invalid     int
	NeedsReview int
	Skipped     int
	TokenCost   int
	Duration    time.Duration
	Outcomes    []Outcome
}

// Run processes every definition through a bounded worker pool and returns
// the per-run summary. Definition order in the summary follows input order.
func (e *Engine) Run(ctx context.Context, defs []tak.Definition) (*Summary, error) {
	runID := uuid.NewString()
	start := time.Now()

	if e.opts.TestMode && len(defs) > 1 {
		e.logger.Infow("Test mode: limiting run to first definition",
			"definitions", len(defs),
		)
		defs = defs[:1]
	}

	e.logger.Infow("Run started",
		"run_id", runID,
		"definitions", len(defs),
		"workers", e.opts.Workers,
		"max_attempts", e.opts.MaxAttempts,
	)

	outcomes := make([]Outcome, len(defs))
	sem := make(chan struct{}, e.opts.Workers)
	var wg sync.WaitGroup

	for i := range defs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = e.Process(ctx, &defs[i], runID)
		}(i)
	}
	wg.Wait()

	summary := &Summary{
		RunID:    runID,
		Duration: time.Since(start),
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		summary.Processed++
		summary.TokenCost += o.TokenCost
		if o.Skipped {
			summary.Skipped++
			continue
		}
		switch o.Disposition {
		case registry.DispositionValid:
			summary.Valid++
		case registry.DispositionInvalid:
			summary.Invalid++
		case registry.DispositionNeedsReview:
			summary.NeedsReview++
		}
	}

	e.logger.Infow("Run finished",
		"run_id", runID,
		"valid", summary.Valid,
		"invalid", summary.Invalid,
		"needs_review", summary.NeedsReview,
		"skipped", summary.Skipped,
		"token_cost", summary.TokenCost,
		"duration", summary.Duration,
	)

	return summary, ctx.Err()
}
