package queue

import (
	"testing"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

func unit(id, group string) models.WorkUnit {
	return models.WorkUnit{ID: id, Group: group, URL: "https://example.com/" + id}
}

func TestPush_PreservesOrderAndDropsDuplicates(t *testing.T) {
	q := New()
	q.Push(unit("a", "g1"), unit("b", "g1"), unit("a", "g2"), unit("c", "g2"))

	if q.Len() != 3 {
		t.Fatalf("Expected 3 units, got %d", q.Len())
	}

	ids := []string{"a", "b", "c"}
	for i, u := range q.Units() {
		if u.ID != ids[i] {
			t.Errorf("Position %d: got %q, want %q", i, u.ID, ids[i])
		}
	}
}

func TestGroupBy_OrderedByFirstAppearance(t *testing.T) {
	units := []models.WorkUnit{
		unit("a1", "brakes"),
		unit("f1", "filters"),
		unit("a2", "brakes"),
		unit("f2", "filters"),
		unit("a3", "brakes"),
	}

	groups := GroupBy(units, nil)

	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if groups[0].Name != "brakes" || groups[1].Name != "filters" {
		t.Errorf("Group order wrong: %s, %s", groups[0].Name, groups[1].Name)
	}
	if len(groups[0].Units) != 3 {
		t.Errorf("brakes group: expected 3 units, got %d", len(groups[0].Units))
	}

	// Intra-group order must follow discovery order
	for i, want := range []string{"a1", "a2", "a3"} {
		if groups[0].Units[i].ID != want {
			t.Errorf("brakes[%d] = %q, want %q", i, groups[0].Units[i].ID, want)
		}
	}
}

func TestGroupBy_CustomGroupFunc(t *testing.T) {
	units := []models.WorkUnit{unit("x", "ignored"), unit("y", "ignored")}
	groups := GroupBy(units, func(u models.WorkUnit) string { return "all" })

	if len(groups) != 1 || groups[0].Name != "all" || len(groups[0].Units) != 2 {
		t.Errorf("Custom groupOf not applied: %+v", groups)
	}
}

func TestFromFailed(t *testing.T) {
	summary := models.RunSummary{
		FailedUnits: []models.FailedUnit{
			{Unit: unit("bad1", "g1"), Reason: "HTTP 500"},
			{Unit: unit("bad2", "g2"), Reason: "timeout"},
		},
	}

	q := FromFailed(summary)
	if q.Len() != 2 {
		t.Fatalf("Expected 2 re-drive units, got %d", q.Len())
	}
	if q.Units()[0].ID != "bad1" || q.Units()[1].ID != "bad2" {
		t.Errorf("Re-drive units wrong: %+v", q.Units())
	}
}
