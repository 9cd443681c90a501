package stores

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a recorded install run.
type RunStatus string

const (
	// RunStatusRunning marks a run that has started and not finished.
	RunStatusRunning RunStatus = "running"

	// RunStatusSuccess marks a run that completed.
	RunStatusSuccess RunStatus = "success"

	// RunStatusFailure marks a run that ended with an error.
	RunStatusFailure RunStatus = "failure"

	// RunStatusCancelled marks a run stopped by the operator.
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one recorded install run.
type Run struct {
	// CorrelationID identifies the run.
	CorrelationID string `json:"correlation_id"`

	// Status is the run's lifecycle state.
	Status RunStatus `json:"status"`

	// ErrorKind classifies a failed run, empty otherwise.
	ErrorKind string `json:"error_kind,omitempty"`

	// Message is the terminal summary, empty while running. Secrets are
	// masked upstream before the message reaches the store.
	Message string `json:"message,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended, nil while running.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunEvent is one persisted progress event.
type RunEvent struct {
	// ID is the auto-assigned row ID.
	ID int64 `json:"id"`

	// CorrelationID ties the event to its run.
	CorrelationID string `json:"correlation_id"`

	// Kind is the event kind, progress or terminal.
	Kind string `json:"kind"`

	// Step and Phase mirror the emitted event.
	Step  string `json:"step,omitempty"`
	Phase string `json:"phase,omitempty"`

	// Severity grades the event.
	Severity string `json:"severity"`

	// Percent is the cumulative progress at emission time.
	Percent int `json:"percent"`

	// Message is the user-safe event text.
	Message string `json:"message"`

	// ElapsedMs is time since the run started.
	ElapsedMs int64 `json:"elapsed_ms"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`
}

// Store is the run history persistence interface.
type Store interface {
	// Init opens the underlying database.
	Init(ctx context.Context) error

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// Close releases the database.
	Close() error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// CreateRun records the start of a run.
	CreateRun(ctx context.Context, run *Run) error

	// FinishRun records a run's terminal outcome.
	FinishRun(ctx context.Context, correlationID string, status RunStatus, errorKind, message string, finishedAt time.Time) error

	// GetRun retrieves one run.
	GetRun(ctx context.Context, correlationID string) (*Run, error)

	// ListRuns lists runs newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// AppendEvent persists one progress event.
	AppendEvent(ctx context.Context, event *RunEvent) error

	// ListEvents lists a run's events in emission order.
	ListEvents(ctx context.Context, correlationID string) ([]*RunEvent, error)

	// PruneRuns deletes runs, and their events, that finished before the
	// cutoff. Returns the number of runs removed.
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}
