// Package parse delegates successful payloads to a caller-supplied
// extraction function and classifies extraction failures separately from
// fetch failures. Extraction problems are data-quality issues: they mark a
// unit partially failed, never abort the run.
package parse

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// Extractor turns a fetched payload into zero or more structured records.
// Implementations are site-specific and must not retain the payload slice.
type Extractor interface {
	Extract(payload []byte, unit models.WorkUnit) ([]models.Record, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(payload []byte, unit models.WorkUnit) ([]models.Record, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(payload []byte, unit models.WorkUnit) ([]models.Record, error) {
	return f(payload, unit)
}

// Apply converts a terminal fetch outcome into the unit's result. The
// extractor runs only on success; its errors and panics are captured as a
// partial failure. A successful page that yields no records is also partial:
// the site answered but produced nothing usable.
func Apply(outcome models.FetchOutcome, unit models.WorkUnit, extractor Extractor) models.UnitResult {
	if outcome.Kind != models.OutcomeSuccess {
		reason := "fetch failed"
		if outcome.Err != nil {
			reason = outcome.Err.Error()
		}
		return models.UnitResult{
			Unit:     unit,
			Status:   models.StatusFailed,
			Reason:   reason,
			Attempts: outcome.Attempts,
		}
	}

	records, err := safeExtract(outcome.Payload, unit, extractor)
	if err != nil {
		log.Warn().
			Str("unit", unit.ID).
			Str("group", unit.Group).
			Err(err).
			Msg("Extraction failed")
		return models.UnitResult{
			Unit:     unit,
			Status:   models.StatusPartiallyFailed,
			Reason:   err.Error(),
			Attempts: outcome.Attempts,
		}
	}

	if len(records) == 0 {
		log.Warn().
			Str("unit", unit.ID).
			Str("group", unit.Group).
			Msg("Page yielded no records")
		return models.UnitResult{
			Unit:     unit,
			Status:   models.StatusPartiallyFailed,
			Reason:   "no records extracted",
			Attempts: outcome.Attempts,
		}
	}

	for i := range records {
		records[i].SourceUnit = unit.ID
		records[i].Group = unit.Group
	}

	log.Debug().
		Str("unit", unit.ID).
		Int("records", len(records)).
		Msg("Extraction completed")

	return models.UnitResult{
		Unit:     unit,
		Records:  records,
		Status:   models.StatusSucceeded,
		Attempts: outcome.Attempts,
	}
}

// safeExtract isolates extractor panics so a bad selector on one page never
// takes down the run.
func safeExtract(payload []byte, unit models.WorkUnit, extractor Extractor) (records []models.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("extractor panicked: %v", r)
		}
	}()
	return extractor.Extract(payload, unit)
}
