package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobState represents where a job is in its lifecycle
type JobState string

const (
	StateIdle              JobState = "idle"
	StatePlanning          JobState = "planning"
	StateDegrading         JobState = "degrading"
	StateRunning           JobState = "running"
	StateSucceeded         JobState = "succeeded"
	StateFailedInput       JobState = "failed_input"
	StateFailedMissingTool JobState = "failed_missing_tool"
	StateFailedUnknown     JobState = "failed_unknown"
	StateCancelled         JobState = "cancelled"
)

// IsTerminal checks if the state ends a job
func (s JobState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailedInput, StateFailedMissingTool, StateFailedUnknown, StateCancelled:
		return true
	}
	return false
}

// FailureKind classifies a failed job
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureInvalidInput      FailureKind = "invalid_input"
	FailureMissingTranscoder FailureKind = "missing_transcoder"
	FailureUnknown           FailureKind = "unknown"
	FailureCancelled         FailureKind = "cancelled"
)

// JobConfig is everything the fetch library needs for one job. Read-only once the fetch starts.
type JobConfig struct {
	URL               string       `json:"url"`
	Container         Container    `json:"container"`
	Plan              FormatPlan   `json:"plan"`
	Tools             ToolLocation `json:"tools"`
	OutputDir         string       `json:"output_dir"`
	OutputTemplate    string       `json:"output_template"`
	NoPlaylist        bool         `json:"no_playlist"`
	Quiet             bool         `json:"quiet"`
	NoWarnings        bool         `json:"no_warnings"`
	RestrictFilenames bool         `json:"restrict_filenames"`
	Degraded          bool         `json:"degraded"`
}

// JobResult is the single terminal outcome of a job
type JobResult struct {
	Success   bool        `json:"success"`
	SavedPath string      `json:"saved_path,omitempty"`
	Kind      FailureKind `json:"kind,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}

// Succeeded builds a success result
func Succeeded(savedPath string) JobResult {
	return JobResult{Success: true, SavedPath: savedPath}
}

// Failed builds a failure result
func Failed(kind FailureKind, detail string) JobResult {
	return JobResult{Kind: kind, Detail: detail}
}

// State maps the result to its terminal state
func (r JobResult) State() JobState {
	if r.Success {
		return StateSucceeded
	}
	switch r.Kind {
	case FailureInvalidInput:
		return StateFailedInput
	case FailureMissingTranscoder:
		return StateFailedMissingTool
	case FailureCancelled:
		return StateCancelled
	default:
		return StateFailedUnknown
	}
}

// JobRecord is the persisted history entry of a job
type JobRecord struct {
	ID          string      `json:"id" gorm:"primaryKey"`
	URL         string      `json:"url" gorm:"not null"`
	Container   Container   `json:"container" gorm:"not null"`
	Quality     string      `json:"quality" gorm:"not null"`
	Selector    string      `json:"selector,omitempty"`
	Degraded    bool        `json:"degraded"`
	ToolDir     string      `json:"tool_dir,omitempty"`
	State       JobState    `json:"state" gorm:"not null;index"`
	FailureKind FailureKind `json:"failure_kind,omitempty"`
	Detail      string      `json:"detail,omitempty" gorm:"type:text"`
	SavedPath   string      `json:"saved_path,omitempty"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// NewJobRecord creates a history entry for a submitted request
func NewJobRecord(req DownloadRequest) *JobRecord {
	return NewJobRecordWithID(uuid.New().String(), req)
}

// NewJobRecordWithID creates a history entry sharing the ID of a started job
func NewJobRecordWithID(id string, req DownloadRequest) *JobRecord {
	now := time.Now()
	return &JobRecord{
		ID:        id,
		URL:       req.URL,
		Container: req.Container,
		Quality:   req.Quality,
		State:     StatePlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkRunning records the config the fetch started with
func (j *JobRecord) MarkRunning(cfg JobConfig) {
	j.State = StateRunning
	j.Selector = cfg.Plan.Selector
	j.Degraded = cfg.Degraded
	j.ToolDir = cfg.Tools.Dir
	now := time.Now()
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkFinished records the terminal result
func (j *JobRecord) MarkFinished(result JobResult) {
	j.State = result.State()
	j.FailureKind = result.Kind
	j.Detail = result.Detail
	j.SavedPath = result.SavedPath
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// IsTerminal checks if the job has finished
func (j *JobRecord) IsTerminal() bool {
	return j.State.IsTerminal()
}
