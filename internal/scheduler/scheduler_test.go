package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/naitridoshi/catalog-harvest/internal/pacing"
	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

func makeUnits(perGroup int, groups ...string) []models.WorkUnit {
	var units []models.WorkUnit
	for i := 0; i < perGroup; i++ {
		for _, g := range groups {
			id := fmt.Sprintf("%s-%d", g, i)
			units = append(units, models.WorkUnit{ID: id, Group: g, URL: "https://example.com/" + id})
		}
	}
	return units
}

func succeed(ctx context.Context, u models.WorkUnit) models.UnitResult {
	return models.UnitResult{Unit: u, Status: models.StatusSucceeded}
}

func TestRun_EveryUnitExactlyOnce(t *testing.T) {
	units := makeUnits(5, "g1", "g2")

	var mu sync.Mutex
	seen := make(map[string]int)

	results, err := Run(context.Background(), units, Options{MaxGroups: 2, MaxPagesPerGroup: 3},
		func(ctx context.Context, u models.WorkUnit) models.UnitResult {
			mu.Lock()
			seen[u.ID]++
			mu.Unlock()
			return succeed(ctx, u)
		})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != len(units) {
		t.Fatalf("Expected %d results, got %d", len(units), len(results))
	}
	for _, u := range units {
		if seen[u.ID] != 1 {
			t.Errorf("Unit %s dispatched %d times", u.ID, seen[u.ID])
		}
	}
}

func TestRun_ConcurrencyCapsAreHardCeilings(t *testing.T) {
	units := makeUnits(9, "g1", "g2", "g3", "g4")

	var activeGroups, peakGroups int64
	groupActive := make(map[string]*int64)
	var mu sync.Mutex

	trackGroup := func(name string) *int64 {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := groupActive[name]; !ok {
			var n int64
			groupActive[name] = &n
		}
		return groupActive[name]
	}

	var peakPages int64

	process := func(ctx context.Context, u models.WorkUnit) models.UnitResult {
		pages := trackGroup(u.Group)
		inGroup := atomic.AddInt64(pages, 1)
		for {
			peak := atomic.LoadInt64(&peakPages)
			if inGroup <= peak || atomic.CompareAndSwapInt64(&peakPages, peak, inGroup) {
				break
			}
		}

		g := atomic.AddInt64(&activeGroups, 1)
		for {
			peak := atomic.LoadInt64(&peakGroups)
			if g <= peak || atomic.CompareAndSwapInt64(&peakGroups, peak, g) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)

		atomic.AddInt64(&activeGroups, -1)
		atomic.AddInt64(pages, -1)
		return succeed(ctx, u)
	}

	_, err := Run(context.Background(), units, Options{MaxGroups: 2, MaxPagesPerGroup: 3}, process)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if p := atomic.LoadInt64(&peakPages); p > 3 {
		t.Errorf("Inner cap violated: %d concurrent pages in one group", p)
	}
	// activeGroups counts in-flight units across all groups; with 2 groups
	// of 3 pages each, the total can never exceed 2*3.
	if p := atomic.LoadInt64(&peakGroups); p > 6 {
		t.Errorf("Outer cap violated: %d concurrent units across groups", p)
	}
}

func TestRun_FailureDoesNotAbortSiblings(t *testing.T) {
	units := makeUnits(4, "g1")

	process := func(ctx context.Context, u models.WorkUnit) models.UnitResult {
		if u.ID == "g1-1" {
			return models.UnitResult{Unit: u, Status: models.StatusFailed, Reason: "HTTP 500"}
		}
		return succeed(ctx, u)
	}

	results, err := Run(context.Background(), units, Options{MaxGroups: 1, MaxPagesPerGroup: 2}, process)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	failed, ok := 0, 0
	for _, r := range results {
		switch r.Status {
		case models.StatusFailed:
			failed++
		case models.StatusSucceeded:
			ok++
		}
	}
	if failed != 1 || ok != 3 {
		t.Errorf("Expected 1 failed and 3 succeeded, got %d/%d", failed, ok)
	}
}

func TestRun_CancellationStopsDispatchButAccountsAllUnits(t *testing.T) {
	units := makeUnits(10, "g1")

	ctx, cancel := context.WithCancel(context.Background())

	var dispatched int64
	process := func(ctx context.Context, u models.WorkUnit) models.UnitResult {
		if atomic.AddInt64(&dispatched, 1) >= 2 {
			cancel()
		}
		return succeed(ctx, u)
	}

	results, err := Run(ctx, units, Options{MaxGroups: 1, MaxPagesPerGroup: 2}, process)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != len(units) {
		t.Fatalf("Expected all %d units accounted, got %d", len(units), len(results))
	}
	if d := atomic.LoadInt64(&dispatched); d >= int64(len(units)) {
		t.Errorf("Expected dispatch to stop after cancellation, dispatched %d", d)
	}
}

func TestRun_InvalidCaps(t *testing.T) {
	units := makeUnits(1, "g1")

	if _, err := Run(context.Background(), units, Options{MaxGroups: 0, MaxPagesPerGroup: 1}, succeed); err == nil {
		t.Error("Expected error for MaxGroups=0")
	}
	if _, err := Run(context.Background(), units, Options{MaxGroups: 1, MaxPagesPerGroup: 0}, succeed); err == nil {
		t.Error("Expected error for MaxPagesPerGroup=0")
	}
}

func TestRun_PacingScopesInvoked(t *testing.T) {
	units := makeUnits(4, "g1") // one group, batches of 2 -> 1 post-batch pause

	var mu sync.Mutex
	counts := make(map[time.Duration]int)

	pacer := &pacing.Policy{
		Ranges: map[pacing.Scope]pacing.Range{
			pacing.ScopePreGroup:  {Min: 1 * time.Second, Max: 1 * time.Second},
			pacing.ScopePrePage:   {Min: 2 * time.Second, Max: 2 * time.Second},
			pacing.ScopePostBatch: {Min: 3 * time.Second, Max: 3 * time.Second},
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			mu.Lock()
			counts[d]++
			mu.Unlock()
			return nil
		},
	}

	_, err := Run(context.Background(), units, Options{MaxGroups: 1, MaxPagesPerGroup: 2, Pacer: pacer}, succeed)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if counts[1*time.Second] != 1 {
		t.Errorf("PreGroup delays: got %d, want 1", counts[1*time.Second])
	}
	if counts[2*time.Second] != 4 {
		t.Errorf("PrePage delays: got %d, want 4", counts[2*time.Second])
	}
	if counts[3*time.Second] != 1 {
		t.Errorf("PostBatch delays: got %d, want 1 (no pause after final batch)", counts[3*time.Second])
	}
}

func TestRun_EmptyUnits(t *testing.T) {
	results, err := Run(context.Background(), nil, Options{MaxGroups: 1, MaxPagesPerGroup: 1}, succeed)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}
