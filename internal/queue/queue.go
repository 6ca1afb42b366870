// Package queue holds the ordered sequence of discovered work units waiting
// to be scheduled, and the grouping used by the nested concurrency caps.
package queue

import (
	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// Queue is an ordered collection of work units. Discovery order is
// preserved; duplicate ids are dropped so each unit is dispatched exactly
// once.
type Queue struct {
	units []models.WorkUnit
	seen  map[string]struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{seen: make(map[string]struct{})}
}

// Push appends units, skipping any whose id was already enqueued.
func (q *Queue) Push(units ...models.WorkUnit) {
	for _, u := range units {
		if _, dup := q.seen[u.ID]; dup {
			log.Warn().
				Str("unit", u.ID).
				Str("url", u.URL).
				Msg("Duplicate unit id dropped")
			continue
		}
		q.seen[u.ID] = struct{}{}
		q.units = append(q.units, u)
	}
}

// Units returns the enqueued units in discovery order.
func (q *Queue) Units() []models.WorkUnit {
	return q.units
}

// Len returns the number of enqueued units.
func (q *Queue) Len() int {
	return len(q.units)
}

// Group is an ordered slice of units sharing one outer concurrency slot.
type Group struct {
	Name  string
	Units []models.WorkUnit
}

// GroupBy partitions units using groupOf. Groups are ordered by first
// appearance and each group keeps its internal discovery order, so
// pagination-dependent sites see pages in sequence.
func GroupBy(units []models.WorkUnit, groupOf func(models.WorkUnit) string) []Group {
	if groupOf == nil {
		groupOf = func(u models.WorkUnit) string { return u.Group }
	}

	index := make(map[string]int)
	var groups []Group

	for _, u := range units {
		name := groupOf(u)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Units = append(groups[i].Units, u)
	}

	return groups
}

// FromFailed builds a queue containing only the failed units of a previous
// run, so a caller can re-drive just the failed subset.
func FromFailed(summary models.RunSummary) *Queue {
	q := New()
	for _, f := range summary.FailedUnits {
		q.Push(f.Unit)
	}
	return q
}
