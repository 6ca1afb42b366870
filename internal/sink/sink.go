// Package sink persists aggregated results: per-unit streaming writes plus
// one combined write at run end. Every sink must be idempotent per unit id
// so a crashed run can be retried without duplicating output.
package sink

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// Sink is the persistence destination for harvested records.
type Sink interface {
	// WriteUnit persists one unit's result as it completes. Re-invocation
	// with the same unit id replaces prior output rather than appending.
	WriteUnit(ctx context.Context, res models.UnitResult) error

	// WriteRun persists the combined record set and summary at run end.
	WriteRun(ctx context.Context, summary models.RunSummary, records []models.Record) error
}

// Multi fans writes out to several sinks. All sinks are invoked even when
// one fails; the collected errors are returned joined.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// WriteUnit implements Sink.
func (m *Multi) WriteUnit(ctx context.Context, res models.UnitResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteUnit(ctx, res); err != nil {
			log.Error().Err(err).Str("unit", res.Unit.ID).Msg("Sink unit write failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteRun implements Sink.
func (m *Multi) WriteRun(ctx context.Context, summary models.RunSummary, records []models.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteRun(ctx, summary, records); err != nil {
			log.Error().Err(err).Msg("Sink run write failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fieldColumns returns the sorted union of field keys across records, the
// column set for tabular sinks.
func fieldColumns(records []models.Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range records {
		for k := range r.Fields {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
