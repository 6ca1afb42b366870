package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// CSVSink writes the combined record set as one CSV file. The header is the
// union of field keys across all records, prefixed by the unit and group
// columns; rows with missing fields get empty cells. The file is rewritten
// whole on each run write, which makes repeats idempotent.
type CSVSink struct {
	Path string
}

// NewCSVSink creates a CSV sink writing to the given path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{Path: path}
}

// WriteUnit implements Sink. CSV output is combined-only; streaming per-unit
// writes are a no-op.
func (s *CSVSink) WriteUnit(ctx context.Context, res models.UnitResult) error {
	return nil
}

// WriteRun implements Sink.
func (s *CSVSink) WriteRun(ctx context.Context, summary models.RunSummary, records []models.Record) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	cols := fieldColumns(records)
	header := append([]string{"unit", "group"}, cols...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range records {
		row := make([]string, 0, len(header))
		row = append(row, r.SourceUnit, r.Group)
		for _, c := range cols {
			row = append(row, r.Fields[c])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	log.Info().Str("path", s.Path).Int("rows", len(records)).Msg("CSV written")
	return nil
}
