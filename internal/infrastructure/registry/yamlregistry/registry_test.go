package yamlregistry

import (
	"testing"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

const validDoc = `
version: 1
tables:
  - table_id: sae_issues
    canonical_file_name: eSAE_Dashboard_Standard_DM_Safety_Report.xlsx
    file_name_tokens: [esae, dashboard]
    sheet_patterns: ["SAE Dashboard_DM"]
    required: true
    required_columns:
      - { name: project_name, type: text }
      - { name: subject_id, type: text }
      - { name: case_status, type: text }
    index_columns:
      - [project_name, subject_id]
  - table_id: edrr_issues
    canonical_file_name: Compiled_EDRR.xlsx
    file_name_tokens: [edrr]
    sheet_patterns: ["Sheet1"]
    required: true
    required_columns:
      - { name: project_name, type: text }
      - { name: subject_id, type: text }
      - { name: total_open_issue_count, type: integer }
`

func TestParseValidRegistry(t *testing.T) {
	r, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if r.Version() != 1 {
		t.Fatalf("expected version 1, got %d", r.Version())
	}
	if len(r.All()) != 2 {
		t.Fatalf("expected 2 expectations, got %d", len(r.All()))
	}

	exp, ok := r.ByTableID("sae_issues")
	if !ok {
		t.Fatalf("expected sae_issues lookup to succeed")
	}
	if exp.CanonicalFileName != "eSAE_Dashboard_Standard_DM_Safety_Report.xlsx" {
		t.Fatalf("unexpected canonical file name %q", exp.CanonicalFileName)
	}

	if _, ok := r.ByCanonicalFileName("Compiled_EDRR.xlsx"); !ok {
		t.Fatalf("expected canonical file lookup to succeed")
	}
	if _, ok := r.ByCanonicalFileName("Unknown.xlsx"); ok {
		t.Fatalf("unexpected lookup hit for unknown file")
	}
}

func TestParseRejectsTokenMissingFromCanonicalName(t *testing.T) {
	doc := `
tables:
  - table_id: sae_issues
    canonical_file_name: eSAE_Dashboard.xlsx
    file_name_tokens: [safety]
    required_columns:
      - { name: subject_id, type: text }
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected error for token absent from canonical name")
	}
}

func TestParseRejectsUnknownColumnType(t *testing.T) {
	doc := `
tables:
  - table_id: sae_issues
    canonical_file_name: SAE_Report.xlsx
    file_name_tokens: [sae]
    required_columns:
      - { name: subject_id, type: uuid }
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected error for unknown column type")
	}
}

func TestParseRejectsDuplicateTableID(t *testing.T) {
	doc := `
tables:
  - table_id: sae_issues
    canonical_file_name: SAE_A.xlsx
    file_name_tokens: [sae]
    required_columns: [{ name: subject_id, type: text }]
  - table_id: sae_issues
    canonical_file_name: SAE_B.xlsx
    file_name_tokens: [sae]
    required_columns: [{ name: subject_id, type: text }]
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected error for duplicate table id")
	}
}

func TestParseRejectsUndeclaredIndexColumn(t *testing.T) {
	doc := `
tables:
  - table_id: sae_issues
    canonical_file_name: SAE_Report.xlsx
    file_name_tokens: [sae]
    required_columns: [{ name: subject_id, type: text }]
    index_columns: [[site_id]]
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected error for undeclared index column")
	}
}

func TestParsedColumnsKeepDeclarationOrder(t *testing.T) {
	r, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	exp, _ := r.ByTableID("edrr_issues")
	cols := exp.Columns()
	want := []string{"project_name", "subject_id", "total_open_issue_count"}
	for i, name := range want {
		if cols[i].Name != name {
			t.Fatalf("column %d = %q, want %q", i, cols[i].Name, name)
		}
	}
	if cols[2].Type != domain.ColumnInteger {
		t.Fatalf("expected integer type, got %s", cols[2].Type)
	}
}
