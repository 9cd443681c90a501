package stores

import (
	"context"
	"time"

	"github.com/fieldline/fieldline/pkg/installer"
)

// Recorder adapts a Store to the installer's RunRecorder interface.
type Recorder struct {
	store Store
}

// NewRecorder wraps a store for use as the orchestrator's run recorder.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// RecordRunStarted persists the start of a run.
func (r *Recorder) RecordRunStarted(ctx context.Context, correlationID string, startedAt time.Time) error {
	return r.store.CreateRun(ctx, &Run{
		CorrelationID: correlationID,
		Status:        RunStatusRunning,
		StartedAt:     startedAt,
	})
}

// RecordRunFinished persists a run's terminal outcome.
func (r *Recorder) RecordRunFinished(ctx context.Context, result *installer.InstallResult) error {
	status := RunStatusSuccess
	switch {
	case result.OK:
	case result.ErrorKind == installer.KindCancelled:
		status = RunStatusCancelled
	default:
		status = RunStatusFailure
	}
	return r.store.FinishRun(ctx, result.CorrelationID, status,
		string(result.ErrorKind), result.Message, result.FinishedAt)
}

// RecordEvent persists one progress event.
func (r *Recorder) RecordEvent(ctx context.Context, ev installer.ProgressEvent) error {
	return r.store.AppendEvent(ctx, &RunEvent{
		CorrelationID: ev.CorrelationID,
		Kind:          string(ev.Kind),
		Step:          ev.Step,
		Phase:         ev.Phase,
		Severity:      string(ev.Severity),
		Percent:       ev.Percent,
		Message:       ev.Message,
		ElapsedMs:     ev.ElapsedMs,
		Timestamp:     ev.Timestamp,
	})
}
