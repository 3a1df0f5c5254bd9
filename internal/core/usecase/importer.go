package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/core/matching"
	"github.com/kirillkom/edc-ingest/internal/core/ports"
)

// Importer loads a canonically named batch folder into the target store.
// Each table loads in its own transaction on its own goroutine; a failed
// table rolls back alone and never touches tables that already committed.
// Index maintenance is deferred until every load finished.
type Importer struct {
	scanner      ports.InventoryScanner
	reader       ports.SheetRowReader
	registry     ports.SchemaRegistry
	store        ports.TargetStore
	batches      ports.BatchStatusStore
	defaultStudy string
	log          *slog.Logger
}

func NewImporter(
	scanner ports.InventoryScanner,
	reader ports.SheetRowReader,
	registry ports.SchemaRegistry,
	store ports.TargetStore,
	batches ports.BatchStatusStore,
	defaultStudy string,
	log *slog.Logger,
) *Importer {
	return &Importer{
		scanner:      scanner,
		reader:       reader,
		registry:     registry,
		store:        store,
		batches:      batches,
		defaultStudy: defaultStudy,
		log:          log,
	}
}

func (i *Importer) Import(ctx context.Context, folderPath, study string) ([]domain.ImportResult, error) {
	if strings.TrimSpace(folderPath) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import batch", fmt.Errorf("folder path is empty"))
	}
	if strings.TrimSpace(study) == "" {
		study = domain.StudyFromFolder(filepath.Base(folderPath), i.defaultStudy)
	}

	entries, err := i.scanner.Scan(ctx, folderPath)
	if err != nil {
		return nil, err
	}

	expectations := i.registry.All()
	if err := i.store.EnsureSchema(ctx, expectations); err != nil {
		return nil, fmt.Errorf("ensure target schema: %w", err)
	}

	type task struct {
		entry domain.FileInventoryEntry
		exp   domain.SchemaExpectation
	}
	var tasks []task
	requiredTable := make(map[string]bool)
	for _, entry := range entries {
		exp, ok := i.registry.ByCanonicalFileName(entry.FileName)
		if !ok {
			i.log.Warn("skipping non-canonical file",
				slog.String("file", entry.FileName),
				slog.String("folder", folderPath),
			)
			continue
		}
		tasks = append(tasks, task{entry: entry, exp: exp})
		requiredTable[exp.TableID] = exp.Required
	}

	results := make([]domain.ImportResult, len(tasks))
	var wg sync.WaitGroup
	for idx, t := range tasks {
		wg.Add(1)
		go func(idx int, t task) {
			defer wg.Done()
			results[idx] = i.loadTable(ctx, t.entry, t.exp, study)
		}(idx, t)
	}
	wg.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].TableID < results[b].TableID })

	requiredOK := true
	var failedRequired []string
	for _, res := range results {
		if !res.Success && requiredTable[res.TableID] {
			requiredOK = false
			failedRequired = append(failedRequired, res.TableID)
		}
	}

	// Post-load steps run over whatever committed; a failed sibling table
	// must not leave the rest unindexed or with holes a re-run won't fill.
	if err := i.store.BackfillSubjectFields(ctx, expectations); err != nil {
		return results, fmt.Errorf("backfill subject fields: %w", err)
	}
	if err := i.store.BuildIndexes(ctx, expectations); err != nil {
		return results, fmt.Errorf("build indexes: %w", err)
	}

	i.recordBatchStatus(ctx, folderPath, requiredOK, failedRequired)

	i.log.Info("batch import finished",
		slog.String("folder", folderPath),
		slog.String("study", study),
		slog.Int("tables", len(results)),
		slog.Bool("success", requiredOK),
	)
	return results, nil
}

func (i *Importer) loadTable(ctx context.Context, entry domain.FileInventoryEntry, exp domain.SchemaExpectation, study string) domain.ImportResult {
	result := domain.ImportResult{
		TableID:    exp.TableID,
		SourceFile: entry.FileName,
	}

	sheet := pickSheet(entry, exp)
	if sheet == "" {
		result.Error = "no sheet matches the registry sheet patterns"
		return result
	}
	result.Sheet = sheet

	headers, rows, err := i.reader.ReadRows(ctx, entry.Path, sheet)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.RowsRead = len(rows)

	specs := exp.Columns()
	indexByColumn, missing := mapHeaders(headers, specs, exp)
	if len(missing) > 0 {
		result.Error = "required columns absent: " + strings.Join(missing, ", ")
		return result
	}

	columns := make([]string, len(specs))
	for idx, spec := range specs {
		columns[idx] = spec.Name
	}

	var good [][]any
	for rowIdx, row := range rows {
		values, rowErr := coerceRow(specs, indexByColumn, row, study)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, domain.RowError{
				// +2: header row plus 1-based numbering.
				Row:    rowIdx + 2,
				Column: rowErr.column,
				Reason: rowErr.reason,
			})
			continue
		}
		good = append(good, values)
	}

	inserted, err := i.store.InsertRows(ctx, exp.TableID, columns, good)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.RowsInserted = inserted
	result.Success = true
	return result
}

// pickSheet prefers the first registry pattern present in the workbook and
// falls back to the first sheet when no pattern matches.
func pickSheet(entry domain.FileInventoryEntry, exp domain.SchemaExpectation) string {
	for _, pattern := range exp.SheetPatterns {
		for _, sheet := range entry.Sheets {
			if strings.EqualFold(sheet.Name, pattern) {
				return sheet.Name
			}
		}
	}
	if len(entry.Sheets) > 0 {
		return entry.Sheets[0].Name
	}
	return ""
}

// mapHeaders binds each registry column to its header position. Optional
// columns may be absent; required ones may not, except project_name which the
// loader stamps from the study identifier.
func mapHeaders(headers []string, specs []domain.ColumnSpec, exp domain.SchemaExpectation) (map[string]int, []string) {
	position := make(map[string]int, len(headers))
	for idx, h := range headers {
		position[matching.NormalizeHeader(h)] = idx
	}

	indexByColumn := make(map[string]int, len(specs))
	var missing []string
	required := make(map[string]struct{}, len(exp.RequiredColumns))
	for _, col := range exp.RequiredColumns {
		required[col.Name] = struct{}{}
	}

	for _, spec := range specs {
		idx, ok := position[spec.Name]
		if ok {
			indexByColumn[spec.Name] = idx
			continue
		}
		if _, req := required[spec.Name]; req && spec.Name != studyColumn {
			missing = append(missing, spec.Name)
		}
	}
	return indexByColumn, missing
}

// studyColumn is stamped with the batch's study identifier whenever the
// source cell is blank or the column is absent from the export.
const studyColumn = "project_name"

type rowFailure struct {
	column string
	reason string
}

func coerceRow(specs []domain.ColumnSpec, indexByColumn map[string]int, row []string, study string) ([]any, *rowFailure) {
	values := make([]any, len(specs))
	for idx, spec := range specs {
		raw := ""
		if pos, ok := indexByColumn[spec.Name]; ok && pos < len(row) {
			raw = row[pos]
		}

		value, err := coerceCell(spec, raw)
		if err != nil {
			return nil, &rowFailure{column: spec.Name, reason: err.Error()}
		}
		if value == nil && spec.Name == studyColumn {
			value = study
		}
		values[idx] = value
	}
	return values, nil
}

func (i *Importer) recordBatchStatus(ctx context.Context, folderPath string, requiredOK bool, failedRequired []string) {
	batch, err := i.batches.GetByFolder(ctx, folderPath)
	if err != nil {
		// Worker-driven imports may run on folders never validated through
		// this process; missing lifecycle state is not an import failure.
		if !domain.IsKind(err, domain.ErrBatchNotFound) {
			i.log.Warn("batch lookup failed", slog.String("folder", folderPath), slog.String("error", err.Error()))
		}
		return
	}

	status := domain.StatusImported
	message := ""
	if !requiredOK {
		status = domain.StatusFailed
		message = "failed required tables: " + strings.Join(failedRequired, ", ")
	}
	if err := i.batches.SetStatus(ctx, batch.ID, status, message); err != nil {
		i.log.Warn("batch status update failed", slog.String("batch_id", batch.ID), slog.String("error", err.Error()))
	}
}
