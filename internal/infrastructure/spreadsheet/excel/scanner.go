package excel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/resilience"
)

var recognizedExtensions = map[string]struct{}{
	".xlsx": {},
	".xlsm": {},
}

// Scanner produces the structural inventory of a batch folder: per file, the
// sheet names, header rows, and data row counts. Files are scanned
// concurrently; a file that stays unreadable after the retry budget becomes
// an annotated entry, never a batch failure.
type Scanner struct {
	executor *resilience.Executor
	workers  int
}

func NewScanner(executor *resilience.Executor, workers int) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{executor: executor, workers: workers}
}

func (s *Scanner) Scan(ctx context.Context, folderPath string) ([]domain.FileInventoryEntry, error) {
	info, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrFolderNotFound, "scan batch folder", err)
		}
		return nil, fmt.Errorf("stat batch folder: %w", err)
	}
	if !info.IsDir() {
		return nil, domain.WrapError(domain.ErrFolderNotFound, "scan batch folder",
			fmt.Errorf("%s is not a directory", folderPath))
	}

	dirEntries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, fmt.Errorf("read batch folder: %w", err)
	}

	var files []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		// Office writes ~$-prefixed lock companions next to open workbooks.
		if strings.HasPrefix(name, "~$") {
			continue
		}
		if _, ok := recognizedExtensions[strings.ToLower(filepath.Ext(name))]; ok {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrNoFilesFound, "scan batch folder",
			fmt.Errorf("no recognized spreadsheet files in %s", folderPath))
	}
	sort.Strings(files)

	entries := make([]domain.FileInventoryEntry, len(files))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, name := range files {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			entries[i] = s.inventoryFile(ctx, folderPath, name)
		}(i, name)
	}
	wg.Wait()

	return entries, nil
}

func (s *Scanner) inventoryFile(ctx context.Context, folderPath, name string) domain.FileInventoryEntry {
	entry := domain.FileInventoryEntry{
		FileName: name,
		Path:     filepath.Join(folderPath, name),
	}

	var sheets []domain.SheetDescriptor
	err := s.executor.Execute(ctx, "spreadsheet.open", func(context.Context) error {
		var openErr error
		sheets, openErr = describeSheets(entry.Path)
		return openErr
	}, ClassifyFileError)
	if err != nil {
		entry.ScanError = err.Error()
		return entry
	}

	entry.Sheets = sheets
	return entry
}

func describeSheets(path string) ([]domain.SheetDescriptor, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sheets []domain.SheetDescriptor
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.Rows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("iterate sheet %s: %w", sheetName, err)
		}

		descriptor := domain.SheetDescriptor{Name: sheetName}
		if rows.Next() {
			header, err := rows.Columns()
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("read header of sheet %s: %w", sheetName, err)
			}
			descriptor.Headers = placeholderBlanks(header)
		}
		for rows.Next() {
			descriptor.RowCount++
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close sheet iterator %s: %w", sheetName, err)
		}

		sheets = append(sheets, descriptor)
	}
	return sheets, nil
}

// placeholderBlanks substitutes positional names for empty header cells so
// the column set stays order-stable for matching.
func placeholderBlanks(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			out[i] = fmt.Sprintf("column_%d", i+1)
			continue
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}
