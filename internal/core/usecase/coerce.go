package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

// Spreadsheet exports mix date renderings across sites; all of these show up
// in real batches.
var dateLayouts = []string{
	"2006-01-02",
	"02-Jan-2006",
	"02-Jan-06",
	"01/02/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
}

// coerceCell converts one raw cell string to the column's storage type.
// Blank cells become NULL for every type; a value that cannot be coerced is
// an error so the caller can skip the row and record it.
func coerceCell(spec domain.ColumnSpec, raw string) (any, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	switch spec.Type {
	case domain.ColumnText:
		return value, nil

	case domain.ColumnInteger:
		cleaned := strings.ReplaceAll(value, ",", "")
		if n, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
			return n, nil
		}
		// Exports frequently render counts as "3.0".
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil && f == math.Trunc(f) {
			return int64(f), nil
		}
		return nil, fmt.Errorf("column %q: %q is not an integer", spec.Name, raw)

	case domain.ColumnReal:
		cleaned := strings.ReplaceAll(value, ",", "")
		cleaned = strings.TrimSuffix(cleaned, "%")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %q is not a number", spec.Name, raw)
		}
		return f, nil

	case domain.ColumnDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("column %q: %q is not a recognized date", spec.Name, raw)

	default:
		return nil, fmt.Errorf("column %q: unknown type %q", spec.Name, spec.Type)
	}
}
