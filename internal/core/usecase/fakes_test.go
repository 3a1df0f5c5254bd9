package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScanner struct {
	entries []domain.FileInventoryEntry
	err     error
}

func (f *fakeScanner) Scan(_ context.Context, _ string) ([]domain.FileInventoryEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type fakeRegistry struct {
	expectations []domain.SchemaExpectation
}

func (f *fakeRegistry) All() []domain.SchemaExpectation { return f.expectations }

func (f *fakeRegistry) ByTableID(tableID string) (domain.SchemaExpectation, bool) {
	for _, e := range f.expectations {
		if e.TableID == tableID {
			return e, true
		}
	}
	return domain.SchemaExpectation{}, false
}

func (f *fakeRegistry) ByCanonicalFileName(fileName string) (domain.SchemaExpectation, bool) {
	for _, e := range f.expectations {
		if e.CanonicalFileName == fileName {
			return e, true
		}
	}
	return domain.SchemaExpectation{}, false
}

type fakeBatchStore struct {
	mu      sync.Mutex
	batches map[string]*domain.UploadBatch
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{batches: map[string]*domain.UploadBatch{}}
}

func (f *fakeBatchStore) Upsert(_ context.Context, batch *domain.UploadBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *batch
	f.batches[batch.ID] = &copied
	return nil
}

func (f *fakeBatchStore) GetByID(_ context.Context, id string) (*domain.UploadBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, domain.ErrBatchNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBatchStore) GetByFolder(_ context.Context, folderPath string) (*domain.UploadBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.UploadBatch
	for _, b := range f.batches {
		if b.FolderPath != folderPath {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, domain.ErrBatchNotFound
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeBatchStore) SetStatus(_ context.Context, id string, status domain.BatchStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	b.Status = status
	b.Error = errMessage
	return nil
}

type sheetData struct {
	headers []string
	rows    [][]string
}

type fakeReader struct {
	sheets map[string]sheetData // keyed by path|sheet
	err    error
}

func sheetKey(path, sheet string) string { return path + "|" + sheet }

func (f *fakeReader) ReadRows(_ context.Context, path, sheet string) ([]string, [][]string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	data, ok := f.sheets[sheetKey(path, sheet)]
	if !ok {
		return nil, nil, fmt.Errorf("no sheet %q in %q", sheet, path)
	}
	return data.headers, data.rows, nil
}

type insertCall struct {
	tableID string
	columns []string
	rows    [][]any
}

type fakeTargetStore struct {
	mu            sync.Mutex
	inserts       []insertCall
	failTables    map[string]error
	schemaCalls   int
	backfillCalls int
	indexCalls    int
	ensureErr     error
	buildIdxErr   error
	insertedRows  int
}

func (f *fakeTargetStore) EnsureSchema(_ context.Context, _ []domain.SchemaExpectation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaCalls++
	return f.ensureErr
}

func (f *fakeTargetStore) InsertRows(_ context.Context, tableID string, columns []string, rows [][]any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failTables[tableID]; ok {
		return 0, err
	}
	f.inserts = append(f.inserts, insertCall{tableID: tableID, columns: columns, rows: rows})
	f.insertedRows += len(rows)
	return len(rows), nil
}

func (f *fakeTargetStore) BackfillSubjectFields(_ context.Context, _ []domain.SchemaExpectation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backfillCalls++
	return nil
}

func (f *fakeTargetStore) BuildIndexes(_ context.Context, _ []domain.SchemaExpectation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexCalls++
	return f.buildIdxErr
}

func (f *fakeTargetStore) insertFor(tableID string) (insertCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.inserts {
		if c.tableID == tableID {
			return c, true
		}
	}
	return insertCall{}, false
}
