package installer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldline/fieldline/pkg/dbconn"
	"github.com/fieldline/fieldline/pkg/telemetry"
)

// RunRecorder persists run history. The stores package provides the
// SQLite-backed implementation; a no-op recorder is the default.
type RunRecorder interface {
	// RecordRunStarted persists the start of a run.
	RecordRunStarted(ctx context.Context, correlationID string, startedAt time.Time) error

	// RecordRunFinished persists a run's terminal outcome.
	RecordRunFinished(ctx context.Context, result *InstallResult) error

	// RecordEvent persists one progress event.
	RecordEvent(ctx context.Context, ev ProgressEvent) error
}

// nopRecorder discards run history.
type nopRecorder struct{}

func (nopRecorder) RecordRunStarted(context.Context, string, time.Time) error { return nil }
func (nopRecorder) RecordRunFinished(context.Context, *InstallResult) error   { return nil }
func (nopRecorder) RecordEvent(context.Context, ProgressEvent) error          { return nil }

// Orchestrator owns the install lifecycle: request validation, the
// single-flight guard, the background run, the event stream, and the
// terminal result.
type Orchestrator struct {
	guard      *RunGuard
	events     *Broadcaster
	db         DatabaseProvisioner
	services   ServiceManager
	containers ContainerRuntime
	recorder   RunRecorder
	tracer     *telemetry.Tracer
	metrics    *telemetry.Metrics
	log        zerolog.Logger

	wg sync.WaitGroup

	mu         sync.Mutex
	lastResult *InstallResult
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDatabaseProvisioner substitutes the database layer, used by tests.
func WithDatabaseProvisioner(db DatabaseProvisioner) OrchestratorOption {
	return func(o *Orchestrator) { o.db = db }
}

// WithServiceManager substitutes the host service manager.
func WithServiceManager(m ServiceManager) OrchestratorOption {
	return func(o *Orchestrator) { o.services = m }
}

// WithContainerRuntime substitutes the container runtime.
func WithContainerRuntime(r ContainerRuntime) OrchestratorOption {
	return func(o *Orchestrator) { o.containers = r }
}

// WithRunRecorder attaches a run history store.
func WithRunRecorder(r RunRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithTracer attaches a tracer.
func WithTracer(t *telemetry.Tracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an orchestrator wired with production
// collaborators unless options substitute them.
func NewOrchestrator(log zerolog.Logger, opts ...OrchestratorOption) *Orchestrator {
	log = log.With().Str("component", "installer").Logger()

	o := &Orchestrator{
		guard:      NewRunGuard(),
		events:     NewBroadcaster(log),
		services:   NewSystemdManager(),
		containers: NewComposeRuntime(),
		recorder:   nopRecorder{},
		log:        log,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.db == nil {
		connOpts := []dbconn.Option{}
		if o.metrics != nil {
			connOpts = append(connOpts, dbconn.WithRetryHook(func(engine dbconn.Engine) {
				o.metrics.RecordConnectorRetry(string(engine))
			}))
		}
		o.db = dbconn.NewConnector(log, connOpts...)
	}
	if o.tracer == nil {
		t, _ := telemetry.NewTracer(telemetry.TracingConfig{}, "fieldline", Version, "")
		o.tracer = t
	}
	if o.metrics == nil {
		m, _ := telemetry.NewMetrics(telemetry.MetricsConfig{})
		o.metrics = m
	}
	return o
}

// Subscribe registers an event consumer.
func (o *Orchestrator) Subscribe() (<-chan ProgressEvent, func()) {
	return o.events.Subscribe()
}

// Running reports whether an install is active.
func (o *Orchestrator) Running() bool {
	return o.guard.Running()
}

// LastResult returns the most recent terminal result, or nil when no run
// has finished yet.
func (o *Orchestrator) LastResult() *InstallResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastResult
}

// StartInstall validates the request, acquires the single-flight guard,
// and launches the run in the background. Validation failures and
// re-entry rejections return synchronously without emitting events. On
// success the run's correlation ID is returned immediately; progress
// arrives on subscribed channels and the run ends with exactly one
// terminal event.
func (o *Orchestrator) StartInstall(ctx context.Context, req *InstallRequest) (string, error) {
	if err := ValidateRequest(req); err != nil {
		return "", err
	}

	correlationID := uuid.NewString()
	ok, active := o.guard.Acquire(correlationID)
	if !ok {
		return "", NewAlreadyRunningError(active)
	}

	startedAt := time.Now()
	o.metrics.RecordInstallStarted()
	if err := o.recorder.RecordRunStarted(ctx, correlationID, startedAt); err != nil {
		o.log.Warn().Err(err).Msg("recording run start failed")
	}

	o.log.Info().
		Str("correlation_id", correlationID).
		Str("mode", string(req.Mode)).
		Str("destination", req.Destination).
		Msg("install started")

	o.wg.Add(1)
	go o.execute(correlationID, req, startedAt)

	return correlationID, nil
}

// CancelInstall raises a cancel flag for the active run. The run stops
// at the next step boundary; the in-flight step finishes first. Returns
// false when no run is active.
func (o *Orchestrator) CancelInstall() bool {
	if !o.guard.RequestCancel() {
		return false
	}
	o.log.Info().
		Str("correlation_id", o.guard.ActiveCorrelationID()).
		Msg("cancel requested")
	return true
}

// Wait blocks until the active run, if any, has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close waits for the active run and shuts the event stream down.
func (o *Orchestrator) Close() {
	o.wg.Wait()
	o.events.Close()
}

// execute is the background run body. It releases the guard and emits
// exactly one terminal event on every path, panics included.
func (o *Orchestrator) execute(correlationID string, req *InstallRequest, startedAt time.Time) {
	defer o.wg.Done()
	defer o.guard.Release()

	runCtx, span := o.tracer.StartRunSpan(context.Background(), correlationID)

	env := &runEnv{
		req:           req,
		correlationID: correlationID,
		paths:         newRunPaths(req.Destination),
		db:            o.db,
		services:      o.services,
		containers:    o.containers,
		log:           o.log.With().Str("correlation_id", correlationID).Logger(),
		metrics:       o.metrics,
	}

	exec := newExecutor(installSteps(), o.guard, o.publish, o.tracer, o.metrics, env.log)

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				runErr = NewStepError("", fmt.Sprintf("install panicked: %v", r), nil)
			}
		}()
		runErr = exec.run(runCtx, env)
	}()

	telemetry.RecordError(span, runErr)
	span.End()

	o.finish(correlationID, env, startedAt, runErr)
}

// finish builds the terminal result, records it, and emits the single
// terminal event.
func (o *Orchestrator) finish(correlationID string, env *runEnv, startedAt time.Time, runErr error) {
	finishedAt := time.Now()
	result := &InstallResult{
		CorrelationID: correlationID,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}

	status := "success"
	kind := EventComplete
	severity := SeverityInfo

	if runErr == nil {
		result.OK = true
		result.Message = "install complete"
		result.Details = ResultDetails{
			LogFolder:    env.paths.LogFolder,
			ArtifactsDir: env.paths.ArtifactsDir,
			ManifestPath: env.paths.ManifestPath,
			MappingPath:  env.paths.MappingPath,
			ConfigPath:   env.paths.ConfigPath,
		}
	} else {
		result.Message = runErr.Error()
		result.ErrorKind = KindOf(runErr)
		result.Details = ResultDetails{LogFolder: env.paths.LogFolder}
		kind = EventError
		severity = SeverityError
		status = "failure"
		if IsCancelled(runErr) {
			status = "cancelled"
		}
	}

	o.metrics.RecordInstallCompleted(status, finishedAt.Sub(startedAt))
	if err := o.recorder.RecordRunFinished(context.Background(), result); err != nil {
		o.log.Warn().Err(err).Msg("recording run result failed")
	}

	o.mu.Lock()
	o.lastResult = result
	o.mu.Unlock()

	o.publish(ProgressEvent{
		Kind:          kind,
		CorrelationID: correlationID,
		Severity:      severity,
		Percent:       terminalPercent(runErr),
		Message:       result.Message,
		ElapsedMs:     finishedAt.Sub(startedAt).Milliseconds(),
		EtaMs:         0,
		Timestamp:     finishedAt,
	})

	evt := o.log.Info()
	if runErr != nil {
		evt = o.log.Error().Err(runErr)
	}
	evt.Str("correlation_id", correlationID).
		Str("status", status).
		Dur("duration", finishedAt.Sub(startedAt)).
		Msg("install finished")
}

// publish fans an event out and mirrors it into the run history store.
func (o *Orchestrator) publish(ev ProgressEvent) {
	o.events.Publish(ev)
	if err := o.recorder.RecordEvent(context.Background(), ev); err != nil {
		o.log.Warn().Err(err).Msg("recording event failed")
	}
}

func terminalPercent(runErr error) int {
	if runErr == nil {
		return 100
	}
	return 0
}
