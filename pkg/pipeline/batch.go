package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds how many interactions run in parallel.
const DefaultBatchConcurrency = 8

// BatchRunner fans out independent orchestrator invocations. One item's
// failure never aborts its siblings; results always arrive in input order
// after full fan-in. Batch generation iterates an ordered candidate model
// list rather than the single-retry primary/fallback pair.
type BatchRunner struct {
	orchestrator *Orchestrator
	concurrency  int
	models       []string
}

// NewBatchRunner creates a runner over the orchestrator. concurrency <= 0
// uses the default bound.
func NewBatchRunner(orchestrator *Orchestrator, concurrency int) *BatchRunner {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	models := orchestrator.cfg.BatchModels
	if len(models) == 0 {
		models = []string{orchestrator.cfg.PrimaryModel, orchestrator.cfg.FallbackModel}
	}

	return &BatchRunner{
		orchestrator: orchestrator,
		concurrency:  concurrency,
		models:       models,
	}
}

// Run processes every request concurrently and returns one result per
// request, order-preserving. Run itself never fails: Orchestrator.Run is
// total, so the group collects no errors.
func (b *BatchRunner) Run(ctx context.Context, requests []Request) []Result {
	results := make([]Result, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, req := range requests {
		i, req := i, req
		req.candidates = b.models
		g.Go(func() error {
			results[i] = b.orchestrator.Run(gctx, req)
			return nil
		})
	}

	// Full fan-in; no early cancellation on individual failures.
	_ = g.Wait()

	return results
}
