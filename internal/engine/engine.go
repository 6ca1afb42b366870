// Package engine wires discovery, fetching, parsing, aggregation and sinks
// into one harvesting run. Per-site behavior is injected: the engine owns
// scheduling, pacing and accounting, nothing else.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/internal/aggregate"
	"github.com/naitridoshi/catalog-harvest/internal/fetch"
	"github.com/naitridoshi/catalog-harvest/internal/pacing"
	"github.com/naitridoshi/catalog-harvest/internal/parse"
	"github.com/naitridoshi/catalog-harvest/internal/queue"
	"github.com/naitridoshi/catalog-harvest/internal/scheduler"
	"github.com/naitridoshi/catalog-harvest/internal/sink"
	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// Discoverer enumerates the units of work for one run. Implementations may
// perform their own network I/O and pacing; the engine does not pace
// discovery.
type Discoverer interface {
	Discover(ctx context.Context) ([]models.WorkUnit, error)
}

// DiscovererFunc adapts a plain function to the Discoverer interface.
type DiscovererFunc func(ctx context.Context) ([]models.WorkUnit, error)

// Discover implements Discoverer.
func (f DiscovererFunc) Discover(ctx context.Context) ([]models.WorkUnit, error) {
	return f(ctx)
}

// Options configures a Harvester.
type Options struct {
	Discoverer Discoverer
	Extractor  parse.Extractor
	// Sink receives per-unit and combined results. Nil disables persistence.
	Sink sink.Sink

	Fetcher *fetch.Client
	Pacer   *pacing.Policy

	MaxGroups        int
	MaxPagesPerGroup int
	// RunDeadline bounds the whole run. Zero means no deadline.
	RunDeadline time.Duration

	// OnResult is invoked after each unit completes; used for progress
	// reporting. May be nil.
	OnResult func(models.UnitResult)
}

// Harvester executes complete harvesting runs for one site.
type Harvester struct {
	opts Options
}

// New validates the wiring and creates a Harvester.
func New(opts Options) (*Harvester, error) {
	if opts.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetch client is required")
	}
	if opts.Pacer == nil {
		opts.Pacer = pacing.Default()
	}
	if opts.MaxGroups <= 0 || opts.MaxPagesPerGroup <= 0 {
		return nil, fmt.Errorf("concurrency caps must be > 0 (groups=%d pages=%d)",
			opts.MaxGroups, opts.MaxPagesPerGroup)
	}
	return &Harvester{opts: opts}, nil
}

// Run discovers the unit queue, drains it through the scheduler and hands
// the aggregated results to the sink. A summary is always produced, also on
// cancellation or deadline expiry; the error reports run-fatal conditions
// (discovery failure, final sink failure).
func (h *Harvester) Run(ctx context.Context) (models.RunSummary, error) {
	if h.opts.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RunDeadline)
		defer cancel()
	}

	collector := aggregate.NewCollector()

	units, err := h.opts.Discoverer.Discover(ctx)
	if err != nil {
		_, summary := collector.Aggregate()
		return summary, fmt.Errorf("discovery failed: %w", err)
	}

	q := queue.New()
	q.Push(units...)

	log.Info().
		Int("units", q.Len()).
		Int("max_groups", h.opts.MaxGroups).
		Int("max_pages", h.opts.MaxPagesPerGroup).
		Msg("Run starting")

	if err := h.opts.Pacer.Wait(ctx, pacing.ScopeInitialRun); err != nil {
		log.Warn().Err(err).Msg("Run cancelled before first dispatch")
	}

	results, err := scheduler.Run(ctx, q.Units(), scheduler.Options{
		MaxGroups:        h.opts.MaxGroups,
		MaxPagesPerGroup: h.opts.MaxPagesPerGroup,
		Pacer:            h.opts.Pacer,
	}, h.process)
	if err != nil {
		_, summary := collector.Aggregate()
		return summary, err
	}

	collector.AddAll(results)
	records, summary := collector.Aggregate()

	log.Info().
		Int("succeeded", summary.Succeeded).
		Int("partially_failed", summary.PartiallyFailed).
		Int("failed", summary.Failed).
		Int("records", summary.TotalRecords).
		Dur("elapsed", summary.Elapsed).
		Msg("Run completed")

	if h.opts.Sink != nil {
		// The combined write must land even when the run context was
		// cancelled mid-flight; partial results are the whole point of
		// graceful termination.
		sinkCtx := context.WithoutCancel(ctx)
		if err := h.opts.Sink.WriteRun(sinkCtx, summary, records); err != nil {
			return summary, fmt.Errorf("sink run write failed: %w", err)
		}
	}

	return summary, nil
}

// process fetches and parses one unit; sink and progress callbacks happen
// here so streaming writers see units as they complete.
func (h *Harvester) process(ctx context.Context, unit models.WorkUnit) models.UnitResult {
	outcome := h.opts.Fetcher.Fetch(ctx, unit)
	res := parse.Apply(outcome, unit, h.opts.Extractor)

	if h.opts.Sink != nil {
		if err := h.opts.Sink.WriteUnit(context.WithoutCancel(ctx), res); err != nil {
			// Streaming write failures are not fatal to scheduling; the
			// combined write at run end still covers this unit.
			log.Error().Err(err).Str("unit", unit.ID).Msg("Streaming sink write failed")
		}
	}

	if h.opts.OnResult != nil {
		h.opts.OnResult(res)
	}

	return res
}
