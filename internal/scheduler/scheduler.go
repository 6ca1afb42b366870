// Package scheduler drains the unit-of-work queue under two nested
// concurrency caps: an outer cap on concurrent groups and an inner cap on
// concurrent pages within a group. Pacing delays are applied before each
// group, before each page, and between batches within a group.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/internal/pacing"
	"github.com/naitridoshi/catalog-harvest/internal/queue"
	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// ProcessFunc turns one work unit into its terminal result. Implementations
// must capture their own failures into the result; returning is the only way
// a unit terminates.
type ProcessFunc func(ctx context.Context, unit models.WorkUnit) models.UnitResult

// Options configures a scheduler run.
type Options struct {
	// MaxGroups caps the number of groups in flight.
	MaxGroups int
	// MaxPagesPerGroup caps concurrent units within one group and sets the
	// batch size for post-batch pacing.
	MaxPagesPerGroup int
	// Pacer supplies the delays. Nil means no pacing (tests only).
	Pacer *pacing.Policy
	// GroupOf partitions units. Nil uses the unit's own Group field.
	GroupOf func(models.WorkUnit) string
}

func (o Options) validate() error {
	if o.MaxGroups <= 0 {
		return fmt.Errorf("max concurrent groups must be > 0, got %d", o.MaxGroups)
	}
	if o.MaxPagesPerGroup <= 0 {
		return fmt.Errorf("max concurrent pages per group must be > 0, got %d", o.MaxPagesPerGroup)
	}
	return nil
}

// Run dispatches every unit exactly once and returns one UnitResult per
// unit, in completion order. A failing unit never aborts its siblings. On
// cancellation no new units are dispatched; in-flight units finish and every
// undispatched unit is accounted as Failed, so the result set is always
// complete.
func Run(ctx context.Context, units []models.WorkUnit, opts Options, process ProcessFunc) ([]models.UnitResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return []models.UnitResult{}, nil
	}

	pacer := opts.Pacer
	if pacer == nil {
		pacer = pacing.None()
	}

	groups := queue.GroupBy(units, opts.GroupOf)

	results := make(chan models.UnitResult, len(units))
	groupSem := make(chan struct{}, opts.MaxGroups)

	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func(g queue.Group) {
			defer wg.Done()
			runGroup(ctx, g, opts.MaxPagesPerGroup, pacer, groupSem, process, results)
		}(g)
	}

	wg.Wait()
	close(results)

	collected := make([]models.UnitResult, 0, len(units))
	for res := range results {
		collected = append(collected, res)
	}
	return collected, nil
}

// runGroup acquires an outer concurrency slot and processes the group's
// units in sequential batches of at most maxPages concurrent units.
func runGroup(
	ctx context.Context,
	g queue.Group,
	maxPages int,
	pacer *pacing.Policy,
	groupSem chan struct{},
	process ProcessFunc,
	results chan<- models.UnitResult,
) {
	select {
	case groupSem <- struct{}{}:
		defer func() { <-groupSem }()
	case <-ctx.Done():
		cancelRemaining(ctx, g.Units, results)
		return
	}

	if err := pacer.Wait(ctx, pacing.ScopePreGroup); err != nil {
		cancelRemaining(ctx, g.Units, results)
		return
	}

	log.Debug().
		Str("group", g.Name).
		Int("units", len(g.Units)).
		Msg("Group started")

	for start := 0; start < len(g.Units); start += maxPages {
		if ctx.Err() != nil {
			cancelRemaining(ctx, g.Units[start:], results)
			return
		}

		end := start + maxPages
		if end > len(g.Units) {
			end = len(g.Units)
		}
		batch := g.Units[start:end]

		var bwg sync.WaitGroup
		for _, u := range batch {
			bwg.Add(1)
			go func(u models.WorkUnit) {
				defer bwg.Done()
				if err := pacer.Wait(ctx, pacing.ScopePrePage); err != nil {
					results <- cancelledResult(u, err)
					return
				}
				results <- process(ctx, u)
			}(u)
		}
		bwg.Wait()

		// Pause between batches, but not after the group's final one
		if end < len(g.Units) {
			if err := pacer.Wait(ctx, pacing.ScopePostBatch); err != nil {
				cancelRemaining(ctx, g.Units[end:], results)
				return
			}
		}
	}

	log.Debug().
		Str("group", g.Name).
		Msg("Group completed")
}

// cancelRemaining accounts for every undispatched unit so the run still
// yields exactly one result per unit.
func cancelRemaining(ctx context.Context, units []models.WorkUnit, results chan<- models.UnitResult) {
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	for _, u := range units {
		results <- cancelledResult(u, err)
	}
}

func cancelledResult(u models.WorkUnit, err error) models.UnitResult {
	return models.UnitResult{
		Unit:   u,
		Status: models.StatusFailed,
		Reason: fmt.Sprintf("run cancelled before dispatch: %v", err),
	}
}
