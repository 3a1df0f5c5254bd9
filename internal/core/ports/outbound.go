package ports

import (
	"context"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

// InventoryScanner walks a batch folder and produces the structural
// inventory of every recognized spreadsheet without interpreting meaning.
type InventoryScanner interface {
	Scan(ctx context.Context, folderPath string) ([]domain.FileInventoryEntry, error)
}

// SheetRowReader reads the data rows of one sheet, header excluded. Formula
// cells yield their last computed value.
type SheetRowReader interface {
	ReadRows(ctx context.Context, path, sheet string) (headers []string, rows [][]string, err error)
}

// SchemaRegistry exposes the canonical table expectations. Implementations
// load the registry once and serve lookups from memory.
type SchemaRegistry interface {
	All() []domain.SchemaExpectation
	ByTableID(tableID string) (domain.SchemaExpectation, bool)
	ByCanonicalFileName(fileName string) (domain.SchemaExpectation, bool)
}

// TargetStore is the structured store the import loader writes to. Writes to
// one table are serialized inside a single transaction; subject-field
// backfill and index maintenance are deferred until after all table loads.
type TargetStore interface {
	EnsureSchema(ctx context.Context, expectations []domain.SchemaExpectation) error
	InsertRows(ctx context.Context, tableID string, columns []string, rows [][]any) (int, error)
	BackfillSubjectFields(ctx context.Context, expectations []domain.SchemaExpectation) error
	BuildIndexes(ctx context.Context, expectations []domain.SchemaExpectation) error
}

// BatchStatusStore persists UploadBatch lifecycle state. It replaces any
// process-wide coordination map so concurrent batches stay isolated.
type BatchStatusStore interface {
	Upsert(ctx context.Context, batch *domain.UploadBatch) error
	GetByID(ctx context.Context, id string) (*domain.UploadBatch, error)
	GetByFolder(ctx context.Context, folderPath string) (*domain.UploadBatch, error)
	SetStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error
}

// MessageQueue publishes and consumes batch import jobs.
type MessageQueue interface {
	PublishImportJob(ctx context.Context, job domain.ImportJob) error
	SubscribeImportJobs(ctx context.Context, handler func(context.Context, domain.ImportJob) error) error
}
