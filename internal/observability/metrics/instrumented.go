package metrics

import (
	"context"
	"time"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/core/ports"
)

// InstrumentedValidator decorates a validator with pipeline counters.
type InstrumentedValidator struct {
	next ports.BatchValidator
	m    *Pipeline
}

func NewInstrumentedValidator(next ports.BatchValidator, m *Pipeline) *InstrumentedValidator {
	return &InstrumentedValidator{next: next, m: m}
}

func (v *InstrumentedValidator) Validate(ctx context.Context, folderPath string) (*domain.ValidationReport, error) {
	started := time.Now()
	report, err := v.next.Validate(ctx, folderPath)
	v.m.ObserveStage("validate", started)

	switch {
	case err != nil:
		v.m.BatchesValidated.WithLabelValues("error").Inc()
	case report.IsValid:
		v.m.BatchesValidated.WithLabelValues("valid").Inc()
	default:
		v.m.BatchesValidated.WithLabelValues("invalid").Inc()
	}
	if report != nil {
		for _, d := range report.Decisions {
			v.m.FilesMatched.WithLabelValues(string(d.Tier)).Inc()
		}
	}
	return report, err
}

// InstrumentedRenamer decorates a renamer with stage timing.
type InstrumentedRenamer struct {
	next ports.BatchRenamer
	m    *Pipeline
}

func NewInstrumentedRenamer(next ports.BatchRenamer, m *Pipeline) *InstrumentedRenamer {
	return &InstrumentedRenamer{next: next, m: m}
}

func (r *InstrumentedRenamer) Rename(ctx context.Context, folderPath string, approvedFiles []string) (*domain.RenamePlan, error) {
	started := time.Now()
	plan, err := r.next.Rename(ctx, folderPath, approvedFiles)
	r.m.ObserveStage("rename", started)
	return plan, err
}

// InstrumentedImporter decorates an importer with per-table load counters.
type InstrumentedImporter struct {
	next ports.BatchImporter
	m    *Pipeline
}

func NewInstrumentedImporter(next ports.BatchImporter, m *Pipeline) *InstrumentedImporter {
	return &InstrumentedImporter{next: next, m: m}
}

func (i *InstrumentedImporter) Import(ctx context.Context, folderPath, study string) ([]domain.ImportResult, error) {
	started := time.Now()
	results, err := i.next.Import(ctx, folderPath, study)
	i.m.ObserveStage("import", started)

	for _, res := range results {
		if res.Success {
			i.m.RowsImported.WithLabelValues(res.TableID).Add(float64(res.RowsInserted))
		} else {
			i.m.TableLoadErrors.WithLabelValues(res.TableID).Inc()
		}
		if n := len(res.RowErrors); n > 0 {
			i.m.RowsSkipped.WithLabelValues(res.TableID).Add(float64(n))
		}
	}
	return results, err
}
