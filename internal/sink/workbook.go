package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

// maxSheetNameLen is the Excel limit on sheet names.
const maxSheetNameLen = 31

// WorkbookSink writes one .xlsx workbook: a Summary sheet with per-group
// status and counts, then one sheet per group holding that group's records.
// The workbook is rebuilt whole on each run write.
type WorkbookSink struct {
	Path string
}

// NewWorkbookSink creates a workbook sink writing to the given path.
func NewWorkbookSink(path string) *WorkbookSink {
	return &WorkbookSink{Path: path}
}

// WriteUnit implements Sink. Workbook output is combined-only.
func (s *WorkbookSink) WriteUnit(ctx context.Context, res models.UnitResult) error {
	return nil
}

// WriteRun implements Sink.
func (s *WorkbookSink) WriteRun(ctx context.Context, summary models.RunSummary, records []models.Record) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := s.writeSummarySheet(f, summary, records); err != nil {
		return err
	}

	byGroup := groupRecords(records)
	used := map[string]bool{"Summary": true}
	for _, g := range byGroup {
		name := uniqueSheetName(g.name, used)
		if err := s.writeGroupSheet(f, name, g.records); err != nil {
			return err
		}
	}

	if err := f.SaveAs(s.Path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	log.Info().
		Str("path", s.Path).
		Int("groups", len(byGroup)).
		Int("records", len(records)).
		Msg("Workbook written")
	return nil
}

func (s *WorkbookSink) writeSummarySheet(f *excelize.File, summary models.RunSummary, records []models.Record) error {
	const sheet = "Summary"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to rename summary sheet: %w", err)
	}

	rows := [][]any{
		{"Total Units", summary.TotalUnits},
		{"Succeeded", summary.Succeeded},
		{"Partially Failed", summary.PartiallyFailed},
		{"Failed", summary.Failed},
		{"Total Records", summary.TotalRecords},
		{"Elapsed", summary.Elapsed.String()},
		{},
		{"Group", "Records"},
	}
	for _, g := range groupRecords(records) {
		rows = append(rows, []any{g.name, len(g.records)})
	}
	if len(summary.FailedUnits) > 0 {
		rows = append(rows, []any{}, []any{"Failed Unit", "Reason"})
		for _, fu := range summary.FailedUnits {
			rows = append(rows, []any{fu.Unit.ID, fu.Reason})
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	return nil
}

func (s *WorkbookSink) writeGroupSheet(f *excelize.File, name string, records []models.Record) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", name, err)
	}

	cols := fieldColumns(records)
	header := make([]any, 0, len(cols)+1)
	header = append(header, "unit")
	for _, c := range cols {
		header = append(header, c)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header for %q: %w", name, err)
	}

	for i, r := range records {
		row := make([]any, 0, len(cols)+1)
		row = append(row, r.SourceUnit)
		for _, c := range cols {
			row = append(row, r.Fields[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for %q: %w", name, err)
		}
	}
	return nil
}

type recordGroup struct {
	name    string
	records []models.Record
}

// groupRecords partitions records by group tag, ordered by first appearance.
func groupRecords(records []models.Record) []recordGroup {
	index := make(map[string]int)
	var groups []recordGroup
	for _, r := range records {
		name := r.Group
		if name == "" {
			name = "ungrouped"
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, recordGroup{name: name})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

// sanitizeSheetName strips characters Excel rejects and enforces the 31
// character limit.
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", "*", "_", "[", "_",
		"]", "_", ":", "_", "?", "_",
	)
	out := replacer.Replace(name)
	if out == "" {
		out = "Sheet"
	}
	if len(out) > maxSheetNameLen {
		out = out[:maxSheetNameLen]
	}
	return out
}

// uniqueSheetName sanitizes and disambiguates names that collide after
// truncation.
func uniqueSheetName(name string, used map[string]bool) string {
	base := sanitizeSheetName(name)
	candidate := base
	for n := 2; used[candidate]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		trimmed := base
		if len(trimmed)+len(suffix) > maxSheetNameLen {
			trimmed = trimmed[:maxSheetNameLen-len(suffix)]
		}
		candidate = trimmed + suffix
	}
	used[candidate] = true
	return candidate
}
