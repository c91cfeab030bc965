package domain

// JobRepository defines the interface for job history persistence
type JobRepository interface {
	// Create creates a new job record
	Create(job *JobRecord) error

	// Update updates an existing job record
	Update(job *JobRecord) error

	// Delete deletes a job record by ID
	Delete(id string) error

	// FindByID finds a job record by ID
	FindByID(id string) (*JobRecord, error)

	// FindAll finds all job records with optional filters, newest first
	FindAll(filters map[string]interface{}) ([]*JobRecord, error)

	// FindRecent returns the newest limit records
	FindRecent(limit int) ([]*JobRecord, error)

	// MarkInterrupted fails records left unfinished by a previous process
	MarkInterrupted() (int64, error)

	// GetStats returns job statistics
	GetStats() (*JobStats, error)
}

// JobStats represents job history statistics
type JobStats struct {
	Total     int64 `json:"total"`
	Running   int64 `json:"running"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
	Degraded  int64 `json:"degraded"`
}
