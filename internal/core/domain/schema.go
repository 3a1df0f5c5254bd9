package domain

type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnInteger ColumnType = "integer"
	ColumnReal    ColumnType = "real"
	ColumnDate    ColumnType = "date"
)

// ColumnSpec declares one column of a target table: its canonical name and
// the type row values are coerced to at import time.
type ColumnSpec struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// SchemaExpectation is one canonical target table from the schema registry:
// the file/sheet naming contract plus the required column set. Loaded once
// from configuration and never mutated at runtime.
type SchemaExpectation struct {
	TableID           string       `json:"table_id" yaml:"table_id"`
	CanonicalFileName string       `json:"canonical_file_name" yaml:"canonical_file_name"`
	FileNameTokens    []string     `json:"file_name_tokens" yaml:"file_name_tokens"`
	SheetPatterns     []string     `json:"sheet_patterns" yaml:"sheet_patterns"`
	RequiredColumns   []ColumnSpec `json:"required_columns" yaml:"required_columns"`
	OptionalColumns   []ColumnSpec `json:"optional_columns,omitempty" yaml:"optional_columns"`
	IndexColumns      [][]string   `json:"index_columns,omitempty" yaml:"index_columns"`
	Required          bool         `json:"required" yaml:"required"`
}

// Columns returns required plus optional column specs in declaration order.
func (e SchemaExpectation) Columns() []ColumnSpec {
	out := make([]ColumnSpec, 0, len(e.RequiredColumns)+len(e.OptionalColumns))
	out = append(out, e.RequiredColumns...)
	out = append(out, e.OptionalColumns...)
	return out
}

// ColumnSpecByName looks a column up by canonical name across required and
// optional sets.
func (e SchemaExpectation) ColumnSpecByName(name string) (ColumnSpec, bool) {
	for _, c := range e.Columns() {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}
