package domain

type RenameStatus string

const (
	RenameApplied  RenameStatus = "applied"
	RenameSkipped  RenameStatus = "skipped"
	RenameConflict RenameStatus = "conflict"
	RenameFailed   RenameStatus = "failed"
)

// RenameOutcome records the fate of exactly one rename pair. Every pair in a
// plan produces an outcome; a rename is never partially silent.
type RenameOutcome struct {
	OldPath string       `json:"old_path"`
	NewPath string       `json:"new_path"`
	Status  RenameStatus `json:"status"`
	Reason  string       `json:"reason,omitempty"`
}

// RenamePlan is the applied rename set for one batch: one outcome per
// approved file decision plus the batch folder outcome.
type RenamePlan struct {
	BatchID       string          `json:"batch_id"`
	FileOutcomes  []RenameOutcome `json:"file_outcomes"`
	FolderOutcome RenameOutcome   `json:"folder_outcome"`
}

// Clean reports whether every file-level operation either applied or was
// already canonical.
func (p RenamePlan) Clean() bool {
	for _, o := range p.FileOutcomes {
		if o.Status == RenameConflict || o.Status == RenameFailed {
			return false
		}
	}
	return true
}
