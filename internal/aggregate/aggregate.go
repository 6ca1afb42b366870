// Package aggregate collects per-unit results as they arrive and reduces
// them into the combined record set plus the run summary.
package aggregate

import (
	"sync"
	"time"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// Collector accumulates unit results from concurrent scheduler workers.
// Insertion is append-only and per-unit atomic.
type Collector struct {
	mu      sync.Mutex
	results []models.UnitResult
	started time.Time
}

// NewCollector creates a collector; the run clock starts now.
func NewCollector() *Collector {
	return &Collector{started: time.Now()}
}

// Add records one unit result.
func (c *Collector) Add(res models.UnitResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
}

// AddAll records a batch of unit results.
func (c *Collector) AddAll(results []models.UnitResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, results...)
}

// Results returns a snapshot of the collected unit results.
func (c *Collector) Results() []models.UnitResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.UnitResult, len(c.results))
	copy(out, c.results)
	return out
}

// Aggregate flattens all records preserving their group tags and computes
// the run summary.
func (c *Collector) Aggregate() ([]models.Record, models.RunSummary) {
	results := c.Results()

	summary := models.RunSummary{
		StartedAt:  c.started,
		Elapsed:    time.Since(c.started),
		TotalUnits: len(results),
	}

	var records []models.Record
	for _, res := range results {
		switch res.Status {
		case models.StatusSucceeded:
			summary.Succeeded++
		case models.StatusPartiallyFailed:
			summary.PartiallyFailed++
		case models.StatusFailed:
			summary.Failed++
			summary.FailedUnits = append(summary.FailedUnits, models.FailedUnit{
				Unit:   res.Unit,
				Reason: res.Reason,
			})
		}
		records = append(records, res.Records...)
	}

	summary.TotalRecords = len(records)
	return records, summary
}

// KeyFunc extracts the deduplication key for a record. Records with an empty
// key are never deduplicated.
type KeyFunc func(models.Record) string

// Dedupe collapses records sharing a key, last write wins. The engine is
// dedup-policy-agnostic; sinks that need unique keys (product ids) supply
// the key extractor.
func Dedupe(records []models.Record, key KeyFunc) []models.Record {
	if key == nil {
		return records
	}

	out := make([]models.Record, 0, len(records))
	index := make(map[string]int)

	for _, r := range records {
		k := key(r)
		if k == "" {
			out = append(out, r)
			continue
		}
		if i, seen := index[k]; seen {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}

	return out
}
