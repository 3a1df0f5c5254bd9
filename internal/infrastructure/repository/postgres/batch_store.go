package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

// BatchStore persists upload batch lifecycle state in the upload_batches
// table. Pipeline stages coordinate through this table instead of any
// in-process map, so concurrent batches stay isolated across processes.
type BatchStore struct {
	db *sql.DB
}

func NewBatchStore(db *sql.DB) *BatchStore {
	return &BatchStore{db: db}
}

const batchSchemaDDL = `
CREATE TABLE IF NOT EXISTS upload_batches (
	id            TEXT PRIMARY KEY,
	folder_path   TEXT NOT NULL,
	study         TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_upload_batches_folder_path ON upload_batches (folder_path)`

// EnsureSchema creates the lifecycle table. Idempotent, called at startup.
func (s *BatchStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, batchSchemaDDL); err != nil {
		return fmt.Errorf("ensure upload_batches schema: %w", err)
	}
	return nil
}

func (s *BatchStore) Upsert(ctx context.Context, batch *domain.UploadBatch) error {
	query := `
		INSERT INTO upload_batches (id, folder_path, study, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			folder_path = EXCLUDED.folder_path,
			study = EXCLUDED.study,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		batch.ID, batch.FolderPath, batch.Study, string(batch.Status),
		batch.Error, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert batch %s: %w", batch.ID, err)
	}
	return nil
}

func (s *BatchStore) GetByID(ctx context.Context, id string) (*domain.UploadBatch, error) {
	query := `
		SELECT id, folder_path, study, status, error_message, created_at, updated_at
		FROM upload_batches WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// GetByFolder returns the most recent batch for a folder path. Re-validating
// the same folder creates a new batch, so older rows are history.
func (s *BatchStore) GetByFolder(ctx context.Context, folderPath string) (*domain.UploadBatch, error) {
	query := `
		SELECT id, folder_path, study, status, error_message, created_at, updated_at
		FROM upload_batches WHERE folder_path = $1
		ORDER BY created_at DESC LIMIT 1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, folderPath))
}

func (s *BatchStore) scanOne(row *sql.Row) (*domain.UploadBatch, error) {
	var b domain.UploadBatch
	var status string
	err := row.Scan(&b.ID, &b.FolderPath, &b.Study, &status, &b.Error, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch row: %w", err)
	}
	b.Status = domain.BatchStatus(status)
	return &b, nil
}

func (s *BatchStore) SetStatus(ctx context.Context, id string, status domain.BatchStatus, errMessage string) error {
	query := `
		UPDATE upload_batches
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, id, string(status), errMessage)
	if err != nil {
		return fmt.Errorf("set batch %s status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set batch %s status: %w", id, err)
	}
	if affected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}
