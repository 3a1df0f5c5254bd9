package excel

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/edc-ingest/internal/infrastructure/resilience"
)

// Reader reads the data rows of one sheet for the import loader. Formula
// cells come back as their last computed value; excelize resolves cached
// formula results when reading row-wise.
type Reader struct {
	executor *resilience.Executor
}

func NewReader(executor *resilience.Executor) *Reader {
	return &Reader{executor: executor}
}

func (r *Reader) ReadRows(ctx context.Context, path, sheet string) ([]string, [][]string, error) {
	var headers []string
	var rows [][]string

	err := r.executor.Execute(ctx, "spreadsheet.read", func(context.Context) error {
		var readErr error
		headers, rows, readErr = readSheet(path, sheet)
		return readErr
	}, ClassifyFileError)
	if err != nil {
		return nil, nil, err
	}
	return headers, rows, nil
}

func readSheet(path, sheet string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	iter, err := f.Rows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("iterate sheet %s: %w", sheet, err)
	}
	defer iter.Close()

	var headers []string
	if iter.Next() {
		raw, err := iter.Columns()
		if err != nil {
			return nil, nil, fmt.Errorf("read header of sheet %s: %w", sheet, err)
		}
		headers = placeholderBlanks(raw)
	}

	var rows [][]string
	for iter.Next() {
		cells, err := iter.Columns()
		if err != nil {
			return nil, nil, fmt.Errorf("read row of sheet %s: %w", sheet, err)
		}
		rows = append(rows, cells)
	}
	return headers, rows, nil
}
