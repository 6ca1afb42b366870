package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// JSONSink writes per-unit JSON files plus a combined run file. Files are
// written whole and keyed by unit id, so rewriting a unit replaces its
// previous output (idempotent re-drives).
type JSONSink struct {
	// Dir is the output directory; created on first write.
	Dir string
	// Prefix names the combined files, e.g. "alshamali" ->
	// alshamali_run.json and alshamali_errored.json.
	Prefix string
}

// NewJSONSink creates a JSON file sink.
func NewJSONSink(dir, prefix string) *JSONSink {
	if prefix == "" {
		prefix = "harvest"
	}
	return &JSONSink{Dir: dir, Prefix: prefix}
}

// WriteUnit implements Sink.
func (s *JSONSink) WriteUnit(ctx context.Context, res models.UnitResult) error {
	unitDir := filepath.Join(s.Dir, "units")
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	path := filepath.Join(unitDir, sanitizeFilename(res.Unit.ID)+".json")
	if err := writeJSONFile(path, res); err != nil {
		return err
	}

	log.Debug().Str("unit", res.Unit.ID).Str("path", path).Msg("Unit result written")
	return nil
}

// runFile bundles the combined output written at run end.
type runFile struct {
	Summary models.RunSummary `json:"summary"`
	Records []models.Record   `json:"records"`
}

// WriteRun implements Sink. Failed units are also written to a separate
// errored file so they can be re-driven as a fresh queue.
func (s *JSONSink) WriteRun(ctx context.Context, summary models.RunSummary, records []models.Record) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	runPath := filepath.Join(s.Dir, s.Prefix+"_run.json")
	if err := writeJSONFile(runPath, runFile{Summary: summary, Records: records}); err != nil {
		return err
	}
	log.Info().Str("path", runPath).Int("records", len(records)).Msg("Combined results written")

	if len(summary.FailedUnits) > 0 {
		erroredPath := filepath.Join(s.Dir, s.Prefix+"_errored.json")
		if err := writeJSONFile(erroredPath, summary.FailedUnits); err != nil {
			return err
		}
		log.Warn().
			Str("path", erroredPath).
			Int("failed", len(summary.FailedUnits)).
			Msg("Errored units written for re-drive")
	}

	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeFilename strips path separators and other characters that are not
// safe in a file name derived from a unit id.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_",
		"|", "_", "..", "_", " ", "_",
	)
	out := replacer.Replace(name)
	if out == "" {
		out = "unit"
	}
	return out
}

// ReadErrored loads a previously written errored-units file.
func ReadErrored(path string) ([]models.FailedUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var failed []models.FailedUnit
	if err := json.Unmarshal(data, &failed); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return failed, nil
}
