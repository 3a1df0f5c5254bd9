package domain

import "time"

type BatchStatus string

const (
	StatusReceived            BatchStatus = "received"
	StatusValidated           BatchStatus = "validated"
	StatusInvalid             BatchStatus = "invalid"
	StatusRenamed             BatchStatus = "renamed"
	StatusRenamedWithWarnings BatchStatus = "renamed_with_warnings"
	StatusImported            BatchStatus = "imported"
	StatusFailed              BatchStatus = "failed"
)

// UploadBatch is one folder of spreadsheet exports for one study. The status
// field is the only persisted coordination point between pipeline stages;
// callers must serialize runs per folder.
type UploadBatch struct {
	ID         string      `json:"id"`
	FolderPath string      `json:"folder_path"`
	Study      string      `json:"study"`
	Status     BatchStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
