package ports

import (
	"context"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

// BatchValidator reconciles a batch folder against the schema registry and
// produces a confidence-scored report. Content mismatches are report
// content, never errors.
type BatchValidator interface {
	Validate(ctx context.Context, folderPath string) (*domain.ValidationReport, error)
}

// BatchRenamer applies an operator-approved subset of match decisions plus
// the study-derived folder rename. One outcome per approved decision.
type BatchRenamer interface {
	Rename(ctx context.Context, folderPath string, approvedFiles []string) (*domain.RenamePlan, error)
}

// BatchImporter loads a canonically named batch into the target store, one
// transaction per table.
type BatchImporter interface {
	Import(ctx context.Context, folderPath, study string) ([]domain.ImportResult, error)
}

// BatchReader is the inbound read model for batch lifecycle state.
type BatchReader interface {
	GetByID(ctx context.Context, id string) (*domain.UploadBatch, error)
}
