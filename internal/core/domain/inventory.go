package domain

// SheetDescriptor is the structural fingerprint of one sheet: its name, the
// header row, and the number of data rows below the header. Blank header
// cells are recorded as positional placeholders (column_1, column_2, ...).
type SheetDescriptor struct {
	Name     string   `json:"name"`
	Headers  []string `json:"headers"`
	RowCount int      `json:"row_count"`
}

// FileInventoryEntry is one spreadsheet within a batch, as observed on disk.
// Entries are created by the inventory scan and never mutated afterwards.
// A file that could not be read keeps zero sheets and a ScanError note; it
// does not abort the batch.
type FileInventoryEntry struct {
	FileName  string            `json:"file_name"`
	Path      string            `json:"path"`
	Sheets    []SheetDescriptor `json:"sheets"`
	ScanError string            `json:"scan_error,omitempty"`
}

// Readable reports whether the scan produced usable structure for matching.
func (e FileInventoryEntry) Readable() bool {
	return e.ScanError == "" && len(e.Sheets) > 0
}
