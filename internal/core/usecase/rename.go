package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/core/ports"
)

// Renamer applies approved match decisions to the filesystem. Renames happen
// within one directory, so each is an atomic metadata operation; a conflict
// on the target name never clobbers an existing file.
type Renamer struct {
	validator ports.BatchValidator
	batches   ports.BatchStatusStore
	log       *slog.Logger
}

func NewRenamer(validator ports.BatchValidator, batches ports.BatchStatusStore, log *slog.Logger) *Renamer {
	return &Renamer{validator: validator, batches: batches, log: log}
}

// Rename re-validates the folder, applies the approved subset of decisions,
// then renames the folder itself to the study-derived canonical name. An
// empty approval list means every decision that needs no review.
func (r *Renamer) Rename(ctx context.Context, folderPath string, approvedFiles []string) (*domain.RenamePlan, error) {
	report, err := r.validator.Validate(ctx, folderPath)
	if err != nil {
		return nil, err
	}

	selected := selectDecisions(report, approvedFiles)
	plan := &domain.RenamePlan{
		BatchID:      report.Batch.ID,
		FileOutcomes: make([]domain.RenameOutcome, 0, len(selected)),
	}
	for _, item := range selected {
		plan.FileOutcomes = append(plan.FileOutcomes, r.renameFile(item))
	}

	plan.FolderOutcome = r.renameFolder(folderPath, report.Batch.Study)

	// The batch row must track the folder it now lives at, or the import
	// stage can never find it again.
	if plan.FolderOutcome.Status == domain.RenameApplied {
		report.Batch.FolderPath = plan.FolderOutcome.NewPath
		report.Batch.UpdatedAt = time.Now().UTC()
		if err := r.batches.Upsert(ctx, &report.Batch); err != nil {
			return nil, fmt.Errorf("persist batch folder path: %w", err)
		}
	}

	status := domain.StatusRenamed
	message := ""
	if !plan.Clean() || plan.FolderOutcome.Status == domain.RenameConflict || plan.FolderOutcome.Status == domain.RenameFailed {
		status = domain.StatusRenamedWithWarnings
		message = "one or more renames did not apply"
	}
	if err := r.batches.SetStatus(ctx, report.Batch.ID, status, message); err != nil {
		return nil, fmt.Errorf("update batch status: %w", err)
	}

	r.log.Info("batch renamed",
		slog.String("batch_id", report.Batch.ID),
		slog.Int("files", len(plan.FileOutcomes)),
		slog.String("folder_status", string(plan.FolderOutcome.Status)),
		slog.Bool("clean", plan.Clean()),
	)
	return plan, nil
}

type renameItem struct {
	decision domain.MatchDecision
	reason   string
}

// selectDecisions resolves the approval list against the current decisions.
// Approving a file the matcher could not place is reported, not ignored.
func selectDecisions(report *domain.ValidationReport, approvedFiles []string) []renameItem {
	if len(approvedFiles) == 0 {
		var items []renameItem
		for _, d := range report.Decisions {
			if d.Approvable() {
				items = append(items, renameItem{decision: d})
			}
		}
		return items
	}

	items := make([]renameItem, 0, len(approvedFiles))
	for _, name := range approvedFiles {
		d, ok := report.DecisionForFile(name)
		switch {
		case !ok:
			items = append(items, renameItem{
				decision: domain.MatchDecision{FileName: name},
				reason:   "file is not part of the batch",
			})
		case d.Ambiguous:
			items = append(items, renameItem{decision: d, reason: "match is ambiguous"})
		case !d.Matched():
			items = append(items, renameItem{decision: d, reason: "no confident match"})
		default:
			items = append(items, renameItem{decision: d})
		}
	}
	return items
}

func (r *Renamer) renameFile(item renameItem) domain.RenameOutcome {
	d := item.decision
	outcome := domain.RenameOutcome{OldPath: d.Path}

	if item.reason != "" {
		outcome.Status = domain.RenameFailed
		outcome.Reason = item.reason
		return outcome
	}

	newPath := filepath.Join(filepath.Dir(d.Path), d.ProposedName)
	outcome.NewPath = newPath

	if d.FileName == d.ProposedName {
		outcome.Status = domain.RenameSkipped
		outcome.Reason = "already canonical"
		return outcome
	}
	if _, err := os.Stat(newPath); err == nil {
		outcome.Status = domain.RenameConflict
		outcome.Reason = "target name already exists"
		return outcome
	} else if !errors.Is(err, fs.ErrNotExist) {
		outcome.Status = domain.RenameFailed
		outcome.Reason = err.Error()
		return outcome
	}

	if err := os.Rename(d.Path, newPath); err != nil {
		outcome.Status = domain.RenameFailed
		outcome.Reason = err.Error()
		return outcome
	}
	outcome.Status = domain.RenameApplied
	return outcome
}

func (r *Renamer) renameFolder(folderPath, study string) domain.RenameOutcome {
	canonical := domain.CanonicalFolderName(study)
	outcome := domain.RenameOutcome{OldPath: folderPath}

	if filepath.Base(folderPath) == canonical {
		outcome.NewPath = folderPath
		outcome.Status = domain.RenameSkipped
		outcome.Reason = "already canonical"
		return outcome
	}

	newPath := filepath.Join(filepath.Dir(folderPath), canonical)
	outcome.NewPath = newPath

	if _, err := os.Stat(newPath); err == nil {
		outcome.Status = domain.RenameConflict
		outcome.Reason = "target folder already exists"
		return outcome
	} else if !errors.Is(err, fs.ErrNotExist) {
		outcome.Status = domain.RenameFailed
		outcome.Reason = err.Error()
		return outcome
	}

	if err := os.Rename(folderPath, newPath); err != nil {
		outcome.Status = domain.RenameFailed
		outcome.Reason = err.Error()
		return outcome
	}
	outcome.Status = domain.RenameApplied
	return outcome
}
