package yamlregistry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/core/matching"
)

// document is the on-disk shape of the registry artifact. The registry is
// versioned configuration supplied to the pipeline, not code.
type document struct {
	Version int                        `yaml:"version"`
	Tables  []domain.SchemaExpectation `yaml:"tables"`
}

// Registry serves schema expectations from memory after a single load.
type Registry struct {
	version      int
	expectations []domain.SchemaExpectation
	byTable      map[string]domain.SchemaExpectation
	byFile       map[string]domain.SchemaExpectation
}

func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry yaml: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("registry declares no tables")
	}

	r := &Registry{
		version:      doc.Version,
		expectations: doc.Tables,
		byTable:      make(map[string]domain.SchemaExpectation, len(doc.Tables)),
		byFile:       make(map[string]domain.SchemaExpectation, len(doc.Tables)),
	}
	for _, exp := range doc.Tables {
		if err := validate(exp); err != nil {
			return nil, fmt.Errorf("table %q: %w", exp.TableID, err)
		}
		if _, dup := r.byTable[exp.TableID]; dup {
			return nil, fmt.Errorf("duplicate table id %q", exp.TableID)
		}
		if _, dup := r.byFile[exp.CanonicalFileName]; dup {
			return nil, fmt.Errorf("duplicate canonical file name %q", exp.CanonicalFileName)
		}
		r.byTable[exp.TableID] = exp
		r.byFile[exp.CanonicalFileName] = exp
	}
	return r, nil
}

func (r *Registry) Version() int { return r.version }

func (r *Registry) All() []domain.SchemaExpectation {
	out := make([]domain.SchemaExpectation, len(r.expectations))
	copy(out, r.expectations)
	return out
}

func (r *Registry) ByTableID(tableID string) (domain.SchemaExpectation, bool) {
	exp, ok := r.byTable[tableID]
	return exp, ok
}

func (r *Registry) ByCanonicalFileName(fileName string) (domain.SchemaExpectation, bool) {
	exp, ok := r.byFile[fileName]
	return exp, ok
}

func validate(exp domain.SchemaExpectation) error {
	if strings.TrimSpace(exp.TableID) == "" {
		return fmt.Errorf("table_id is required")
	}
	if strings.TrimSpace(exp.CanonicalFileName) == "" {
		return fmt.Errorf("canonical_file_name is required")
	}
	if len(exp.FileNameTokens) == 0 {
		return fmt.Errorf("file_name_tokens must not be empty")
	}
	if len(exp.RequiredColumns) == 0 {
		return fmt.Errorf("required_columns must not be empty")
	}

	// Re-validating an already-canonical folder must self-match at full
	// confidence, so every name token has to appear in the canonical name.
	canonical := map[string]struct{}{}
	for _, tok := range matching.Tokenize(exp.CanonicalFileName) {
		canonical[tok] = struct{}{}
	}
	for _, tok := range exp.FileNameTokens {
		if _, ok := canonical[matching.NormalizeHeader(tok)]; !ok {
			return fmt.Errorf("file name token %q is absent from canonical file name %q", tok, exp.CanonicalFileName)
		}
	}

	seen := map[string]struct{}{}
	for _, col := range exp.Columns() {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("column with empty name")
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("duplicate column %q", col.Name)
		}
		seen[col.Name] = struct{}{}
		switch col.Type {
		case domain.ColumnText, domain.ColumnInteger, domain.ColumnReal, domain.ColumnDate:
		default:
			return fmt.Errorf("column %q has unknown type %q", col.Name, col.Type)
		}
	}

	for _, group := range exp.IndexColumns {
		for _, name := range group {
			if _, ok := seen[name]; !ok {
				return fmt.Errorf("index column %q is not declared", name)
			}
		}
	}
	return nil
}
