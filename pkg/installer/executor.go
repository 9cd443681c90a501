package installer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldline/fieldline/pkg/telemetry"
)

// executor walks the step sequence for one run, checking for
// cancellation at every step boundary and reporting weighted progress.
type executor struct {
	steps   []step
	guard   *RunGuard
	emit    func(ProgressEvent)
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func newExecutor(steps []step, guard *RunGuard, emit func(ProgressEvent), tracer *telemetry.Tracer, metrics *telemetry.Metrics, log zerolog.Logger) *executor {
	return &executor{
		steps:   steps,
		guard:   guard,
		emit:    emit,
		tracer:  tracer,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// run executes the steps in order. It stops at the first failure and
// returns the classified error; subsequent steps never run. A cancel
// request is honored before each step, never mid-step.
func (x *executor) run(ctx context.Context, env *runEnv) error {
	started := x.now()
	totalWeight := 0
	for _, s := range x.steps {
		totalWeight += s.Weight()
	}

	doneWeight := 0
	for _, s := range x.steps {
		if err := x.checkCancel(ctx, s.Name()); err != nil {
			return err
		}

		x.emitProgress(env, s.Name(), "started", started, doneWeight, totalWeight)

		stepCtx, span := x.tracer.StartStepSpan(ctx, env.correlationID, s.Name())
		stepStart := x.now()
		err := s.Run(stepCtx, env)
		x.metrics.RecordStepDuration(s.Name(), x.now().Sub(stepStart))
		telemetry.RecordError(span, err)
		span.End()

		if err != nil {
			x.log.Error().
				Str("step", s.Name()).
				Err(err).
				Msg("install step failed")
			return err
		}

		doneWeight += s.Weight()
		x.emitProgress(env, s.Name(), "finished", started, doneWeight, totalWeight)
		x.log.Info().
			Str("step", s.Name()).
			Int("percent", percentOf(doneWeight, totalWeight)).
			Msg("install step finished")
	}
	return nil
}

// checkCancel honors a pending cancel request or context cancellation at
// a step boundary.
func (x *executor) checkCancel(ctx context.Context, nextStep string) error {
	if x.guard.CancelRequested() {
		return NewCancelledError(nextStep)
	}
	if ctx.Err() != nil {
		return NewCancelledError(nextStep)
	}
	return nil
}

func (x *executor) emitProgress(env *runEnv, stepName, phase string, started time.Time, doneWeight, totalWeight int) {
	now := x.now()
	elapsed := now.Sub(started)

	eta := int64(-1)
	if doneWeight > 0 && doneWeight < totalWeight {
		perWeight := elapsed / time.Duration(doneWeight)
		eta = (perWeight * time.Duration(totalWeight-doneWeight)).Milliseconds()
	}

	x.emit(ProgressEvent{
		Kind:          EventProgress,
		CorrelationID: env.correlationID,
		Step:          stepName,
		Phase:         phase,
		Severity:      SeverityInfo,
		Percent:       percentOf(doneWeight, totalWeight),
		Message:       stepName + " " + phase,
		ElapsedMs:     elapsed.Milliseconds(),
		EtaMs:         eta,
		Timestamp:     now,
	})
}

func percentOf(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}
