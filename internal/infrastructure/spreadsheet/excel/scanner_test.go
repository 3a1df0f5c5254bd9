package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/resilience"
)

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Policy{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	})
}

func writeWorkbook(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("DeleteSheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
}

func TestScanFolderNotFound(t *testing.T) {
	scanner := NewScanner(fastExecutor(), 2)
	_, err := scanner.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !domain.IsKind(err, domain.ErrFolderNotFound) {
		t.Fatalf("expected ErrFolderNotFound, got %v", err)
	}
}

func TestScanEmptyFolder(t *testing.T) {
	scanner := NewScanner(fastExecutor(), 2)
	_, err := scanner.Scan(context.Background(), t.TempDir())
	if !domain.IsKind(err, domain.ErrNoFilesFound) {
		t.Fatalf("expected ErrNoFilesFound, got %v", err)
	}
}

func TestScanRecordsSheetsHeadersAndRowCounts(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "Study1_SAE_Report.xlsx"), "SAE Dashboard_DM", [][]any{
		{"Project Name", "Subject ID", "Case Status"},
		{"Study 1", "1001", "Open"},
		{"Study 1", "1002", "Closed"},
	})

	entries, err := NewScanner(fastExecutor(), 2).Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if !e.Readable() {
		t.Fatalf("expected readable entry, got scan error %q", e.ScanError)
	}
	if len(e.Sheets) != 1 || e.Sheets[0].Name != "SAE Dashboard_DM" {
		t.Fatalf("unexpected sheets: %+v", e.Sheets)
	}
	if e.Sheets[0].RowCount != 2 {
		t.Fatalf("expected 2 data rows, got %d", e.Sheets[0].RowCount)
	}
	if len(e.Sheets[0].Headers) != 3 || e.Sheets[0].Headers[0] != "Project Name" {
		t.Fatalf("unexpected headers: %v", e.Sheets[0].Headers)
	}
}

func TestScanBlankHeaderCellsBecomePlaceholders(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "export.xlsx"), "Sheet1", [][]any{
		{"Project Name", "", "Case Status"},
		{"Study 1", "x", "Open"},
	})

	entries, err := NewScanner(fastExecutor(), 2).Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	headers := entries[0].Sheets[0].Headers
	if headers[1] != "column_2" {
		t.Fatalf("expected placeholder for blank header, got %q", headers[1])
	}
}

func TestScanCorruptFileIsPerFileFailure(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "good.xlsx"), "Sheet1", [][]any{
		{"Project Name", "Subject ID"},
		{"Study 1", "1001"},
	})
	if err := os.WriteFile(filepath.Join(dir, "corrupt.xlsx"), []byte("not a workbook"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	entries, err := NewScanner(fastExecutor(), 2).Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("corrupt file must not abort the batch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byName := map[string]domain.FileInventoryEntry{}
	for _, e := range entries {
		byName[e.FileName] = e
	}
	if byName["corrupt.xlsx"].ScanError == "" {
		t.Fatalf("expected scan error annotation on corrupt file")
	}
	if len(byName["corrupt.xlsx"].Sheets) != 0 {
		t.Fatalf("unreadable file must keep zero sheets")
	}
	if !byName["good.xlsx"].Readable() {
		t.Fatalf("remaining files must still be scanned")
	}
}

func TestScanSkipsOfficeLockCompanions(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "report.xlsx"), "Sheet1", [][]any{
		{"Project Name"},
		{"Study 1"},
	})
	if err := os.WriteFile(filepath.Join(dir, "~$report.xlsx"), []byte{0x1}, 0o644); err != nil {
		t.Fatalf("write lock file: %v", err)
	}

	entries, err := NewScanner(fastExecutor(), 2).Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(entries) != 1 || entries[0].FileName != "report.xlsx" {
		t.Fatalf("expected only report.xlsx, got %+v", entries)
	}
}

func TestReaderReturnsDataRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]any{
		{"Project Name", "Subject ID"},
		{"Study 1", "1001"},
		{"Study 1", "1002"},
	})

	headers, rows, err := NewReader(fastExecutor()).ReadRows(context.Background(), path, "Sheet1")
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %v", headers)
	}
	if len(rows) != 2 || rows[1][1] != "1002" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
