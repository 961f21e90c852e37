// Package state keeps the run ledger: one row per pipeline run and one per
// export attempted by it.
package state

import "time"

// RunStatus is the outcome of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ExportStatus is the outcome of one export.
type ExportStatus string

// Export statuses.
const (
	ExportStatusSuccess ExportStatus = "success"
	ExportStatusFailed  ExportStatus = "failed"
)

// Run is one execution of a pipeline document.
type Run struct {
	ID          string
	Pipeline    string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// ExportRun is one export written, or attempted, during a run.
type ExportRun struct {
	ID          string
	RunID       string
	Index       int
	Kind        string
	Destination string
	Status      ExportStatus
	Error       string
	DurationMS  int64
}

// Store persists runs.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(pipeline string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	ListRuns(limit int) ([]*Run, error)

	RecordExport(exp *ExportRun) error
	GetExportRuns(runID string) ([]*ExportRun, error)
}
