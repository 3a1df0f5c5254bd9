package domain

// ImportJob is the queue payload that asks the worker to run the import
// stage for a renamed batch.
type ImportJob struct {
	BatchID string `json:"batch_id"`
	Folder  string `json:"folder"`
	Study   string `json:"study"`
}
