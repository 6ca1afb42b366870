package aggregate

import (
	"fmt"
	"sync"
	"testing"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

func record(key, group string) models.Record {
	return models.Record{Fields: map[string]string{"id": key}, Group: group}
}

func TestAggregate_SummaryCounts(t *testing.T) {
	c := NewCollector()
	c.Add(models.UnitResult{
		Unit:    models.WorkUnit{ID: "a", Group: "g1"},
		Status:  models.StatusSucceeded,
		Records: []models.Record{record("1", "g1"), record("2", "g1")},
	})
	c.Add(models.UnitResult{
		Unit:   models.WorkUnit{ID: "b", Group: "g1"},
		Status: models.StatusPartiallyFailed,
		Reason: "no records extracted",
	})
	c.Add(models.UnitResult{
		Unit:   models.WorkUnit{ID: "c", Group: "g2"},
		Status: models.StatusFailed,
		Reason: "HTTP 500",
	})

	records, summary := c.Aggregate()

	if summary.TotalUnits != 3 || summary.Succeeded != 1 || summary.PartiallyFailed != 1 || summary.Failed != 1 {
		t.Errorf("Summary counts wrong: %+v", summary)
	}
	if summary.TotalRecords != 2 || len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}
	if len(summary.FailedUnits) != 1 || summary.FailedUnits[0].Unit.ID != "c" {
		t.Errorf("Failed units wrong: %+v", summary.FailedUnits)
	}
	if summary.FailedUnits[0].Reason != "HTTP 500" {
		t.Errorf("Failure reason not carried: %q", summary.FailedUnits[0].Reason)
	}
}

func TestCollector_ConcurrentAdds(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(models.UnitResult{
				Unit:   models.WorkUnit{ID: fmt.Sprintf("u%d", i)},
				Status: models.StatusSucceeded,
			})
		}(i)
	}
	wg.Wait()

	if got := len(c.Results()); got != 50 {
		t.Errorf("Expected 50 results, got %d", got)
	}
}

func TestDedupe_LastWriteWins(t *testing.T) {
	records := []models.Record{
		{Fields: map[string]string{"sku": "A", "price": "1"}},
		{Fields: map[string]string{"sku": "B", "price": "2"}},
		{Fields: map[string]string{"sku": "A", "price": "3"}},
	}

	out := Dedupe(records, func(r models.Record) string { return r.Fields["sku"] })

	if len(out) != 2 {
		t.Fatalf("Expected 2 records after dedupe, got %d", len(out))
	}
	if out[0].Fields["price"] != "3" {
		t.Errorf("Last write should win for sku A, got price %q", out[0].Fields["price"])
	}
	if out[1].Fields["sku"] != "B" {
		t.Errorf("Record order not preserved: %+v", out)
	}
}

func TestDedupe_EmptyKeyKept(t *testing.T) {
	records := []models.Record{
		{Fields: map[string]string{"sku": ""}},
		{Fields: map[string]string{"sku": ""}},
	}

	out := Dedupe(records, func(r models.Record) string { return r.Fields["sku"] })

	if len(out) != 2 {
		t.Errorf("Records with empty keys must all be kept, got %d", len(out))
	}
}

func TestDedupe_NilKeyFuncPassthrough(t *testing.T) {
	records := []models.Record{record("1", "g"), record("1", "g")}
	out := Dedupe(records, nil)
	if len(out) != 2 {
		t.Errorf("Nil key func must not dedupe, got %d", len(out))
	}
}
