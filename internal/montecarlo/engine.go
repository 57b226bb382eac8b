package montecarlo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"risk-models/internal/apperr"
	"risk-models/internal/logger"
	"risk-models/internal/observability"
	"risk-models/internal/randx"
)

// Engine runs simulation batches against a seeded random source.
// Each parameter is sampled on its own stream split from the source, so a
// fixed seed gives the same outcome regardless of worker count.
type Engine struct {
	mu      sync.Mutex
	src     randx.Source
	workers int
	metrics *observability.Metrics
}

// NewEngine returns an engine drawing from src. workers bounds how many
// parameters are sampled concurrently; values below one mean one.
// metrics may be nil.
func NewEngine(src randx.Source, workers int, metrics *observability.Metrics) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{src: src, workers: workers, metrics: metrics}
}

// streams splits one child stream per parameter under the engine lock.
func (e *Engine) streams(n int) []randx.Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]randx.Source, n)
	for i := range out {
		out[i] = randx.Split(e.src)
	}
	return out
}

// Run samples, combines and summarizes batch. Cancelling ctx stops
// parameters that have not started sampling yet.
func (e *Engine) Run(ctx context.Context, batch Batch) (*Outcome, error) {
	start := time.Now()
	if err := batch.Validate(); err != nil {
		e.metrics.RejectedArgument("simulate")
		return nil, err
	}

	streams := e.streams(len(batch.Parameters))
	samples := make([][]float64, len(batch.Parameters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range batch.Parameters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := GenerateSamples(streams[i], p, batch.Trials)
			if err != nil {
				return fmt.Errorf("sample %q: %w", p.Name, err)
			}
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if apperr.IsInvalid(err) {
			e.metrics.RejectedArgument("simulate")
		}
		return nil, err
	}

	rule := batch.EffectiveRule()
	combined, err := Combine(batch.Parameters, samples, rule, batch.DiscountRate)
	if err != nil {
		return nil, err
	}
	// Valid shapes can still overflow once combined, e.g. a sum of two
	// normals near math.MaxFloat64.
	out, err := Summarize(combined)
	if err != nil {
		e.metrics.RejectedArgument("simulate")
		return nil, fmt.Errorf("%s of %d parameters: %w", rule, len(batch.Parameters), err)
	}

	elapsed := time.Since(start)
	e.metrics.ObserveSimulation(string(rule), batch.Trials, elapsed)
	logger.Info("MC", "batch complete",
		"trials", batch.Trials,
		"parameters", len(batch.Parameters),
		"rule", string(rule),
		"mean", out.Statistics.Mean,
		"elapsed", elapsed)
	return out, nil
}
