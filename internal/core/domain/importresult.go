package domain

// RowError records one skipped row during import: the 1-based spreadsheet
// row number and what went wrong. Row errors never abort the table load.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

// ImportResult is the per-table outcome of one import invocation. Import
// success is per table, not all-or-nothing across the batch: a rolled-back
// table leaves already-committed tables untouched.
type ImportResult struct {
	TableID      string     `json:"table_id"`
	SourceFile   string     `json:"source_file"`
	Sheet        string     `json:"sheet,omitempty"`
	RowsRead     int        `json:"rows_read"`
	RowsInserted int        `json:"rows_inserted"`
	RowErrors    []RowError `json:"row_errors,omitempty"`
	Success      bool       `json:"success"`
	Error        string     `json:"error,omitempty"`
}
