package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/naitridoshi/catalog-harvest/pkg/models"
)

func sampleResult(id string) models.UnitResult {
	return models.UnitResult{
		Unit:   models.WorkUnit{ID: id, Group: "brakes", URL: "https://example.com/" + id},
		Status: models.StatusSucceeded,
		Records: []models.Record{
			{Fields: map[string]string{"part": "pad", "price": "10"}, SourceUnit: id, Group: "brakes"},
		},
	}
}

func sampleRun() (models.RunSummary, []models.Record) {
	records := []models.Record{
		{Fields: map[string]string{"part": "pad", "price": "10"}, SourceUnit: "u1", Group: "brakes"},
		{Fields: map[string]string{"part": "disc"}, SourceUnit: "u2", Group: "brakes"},
		{Fields: map[string]string{"part": "oil filter", "oem": "X1"}, SourceUnit: "u3", Group: "filters"},
	}
	summary := models.RunSummary{
		TotalUnits:   4,
		Succeeded:    3,
		Failed:       1,
		TotalRecords: 3,
		FailedUnits: []models.FailedUnit{
			{Unit: models.WorkUnit{ID: "u4", Group: "filters", URL: "https://example.com/u4"}, Reason: "HTTP 500"},
		},
	}
	return summary, records
}

func TestJSONSink_UnitWriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONSink(dir, "test")
	ctx := context.Background()

	res := sampleResult("u1")
	if err := s.WriteUnit(ctx, res); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := s.WriteUnit(ctx, res); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "units"))
	if err != nil {
		t.Fatalf("Failed to read unit dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 unit file after double write, got %d", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, "units", "u1.json"))
	if err != nil {
		t.Fatalf("Failed to read unit file: %v", err)
	}
	var got models.UnitResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unit file not valid JSON: %v", err)
	}
	if got.Unit.ID != "u1" || len(got.Records) != 1 {
		t.Errorf("Unit file content wrong: %+v", got)
	}
}

func TestJSONSink_WriteRunAndErroredFile(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONSink(dir, "test")
	summary, records := sampleRun()

	if err := s.WriteRun(context.Background(), summary, records); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	failed, err := ReadErrored(filepath.Join(dir, "test_errored.json"))
	if err != nil {
		t.Fatalf("ReadErrored failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Unit.ID != "u4" {
		t.Errorf("Errored file wrong: %+v", failed)
	}
	if failed[0].Unit.URL == "" {
		t.Error("Errored unit must carry its URL for re-drives")
	}
}

func TestCSVSink_UnionHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	s := NewCSVSink(path)
	summary, records := sampleRun()

	if err := s.WriteRun(context.Background(), summary, records); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse csv: %v", err)
	}

	if len(rows) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d", len(rows))
	}

	wantHeader := []string{"unit", "group", "oem", "part", "price"}
	for i, h := range wantHeader {
		if rows[0][i] != h {
			t.Errorf("Header[%d] = %q, want %q", i, rows[0][i], h)
		}
	}

	// Missing fields become empty cells
	if rows[2][4] != "" {
		t.Errorf("Expected empty price for u2, got %q", rows[2][4])
	}
}

func TestWorkbookSink_SheetsPerGroup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.xlsx")
	s := NewWorkbookSink(path)
	summary, records := sampleRun()

	if err := s.WriteRun(context.Background(), summary, records); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := map[string]bool{"Summary": false, "brakes": false, "filters": false}
	for _, name := range sheets {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Missing sheet %q, got %v", name, sheets)
		}
	}

	cell, err := f.GetCellValue("brakes", "A2")
	if err != nil {
		t.Fatalf("Failed to read cell: %v", err)
	}
	if cell != "u1" {
		t.Errorf("brakes!A2 = %q, want u1", cell)
	}
}

func TestSanitizeSheetName(t *testing.T) {
	got := sanitizeSheetName("Brake/Pads: Front [OEM] *Special?")
	if len(got) > maxSheetNameLen {
		t.Errorf("Sheet name exceeds 31 chars: %q", got)
	}
	for _, c := range []string{"/", ":", "[", "]", "*", "?"} {
		if strings.Contains(got, c) {
			t.Errorf("Sheet name contains forbidden %q: %q", c, got)
		}
	}
}

func TestUniqueSheetName_Collisions(t *testing.T) {
	used := map[string]bool{}
	a := uniqueSheetName("Category With A Very Long Name Indeed", used)
	b := uniqueSheetName("Category With A Very Long Name Indeed", used)
	if a == b {
		t.Errorf("Colliding names not disambiguated: %q vs %q", a, b)
	}
	if len(b) > maxSheetNameLen {
		t.Errorf("Disambiguated name exceeds limit: %q", b)
	}
}

func TestMulti_AllSinksInvokedDespiteFailure(t *testing.T) {
	failing := &stubSink{err: os.ErrPermission}
	ok := &stubSink{}
	m := NewMulti(failing, ok)

	if err := m.WriteUnit(context.Background(), sampleResult("u1")); err == nil {
		t.Error("Expected error from failing sink")
	}
	if ok.unitCalls != 1 {
		t.Errorf("Healthy sink skipped: %d calls", ok.unitCalls)
	}
}

type stubSink struct {
	err       error
	unitCalls int
	runCalls  int
}

func (s *stubSink) WriteUnit(ctx context.Context, res models.UnitResult) error {
	s.unitCalls++
	return s.err
}

func (s *stubSink) WriteRun(ctx context.Context, summary models.RunSummary, records []models.Record) error {
	s.runCalls++
	return s.err
}
