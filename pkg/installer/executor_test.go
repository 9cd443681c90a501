package installer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fieldline/fieldline/pkg/telemetry"
)

// scriptedStep is a step with injectable behavior.
type scriptedStep struct {
	name   string
	weight int
	run    func(ctx context.Context, env *runEnv) error
	calls  int
}

func (s *scriptedStep) Name() string { return s.name }
func (s *scriptedStep) Weight() int  { return s.weight }
func (s *scriptedStep) Run(ctx context.Context, env *runEnv) error {
	s.calls++
	if s.run == nil {
		return nil
	}
	return s.run(ctx, env)
}

func newTestExecutor(t *testing.T, steps []step, guard *RunGuard, emit func(ProgressEvent)) *executor {
	t.Helper()
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{}, "fieldline", "test", "")
	if err != nil {
		t.Fatal(err)
	}
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return newExecutor(steps, guard, emit, tracer, metrics, zerolog.Nop())
}

func TestExecutorRunsStepsInOrder(t *testing.T) {
	var order []string
	mk := func(name string, weight int) *scriptedStep {
		return &scriptedStep{name: name, weight: weight, run: func(context.Context, *runEnv) error {
			order = append(order, name)
			return nil
		}}
	}
	steps := []step{mk("one", 30), mk("two", 30), mk("three", 40)}

	var events []ProgressEvent
	x := newTestExecutor(t, steps, NewRunGuard(), func(ev ProgressEvent) { events = append(events, ev) })

	env := &runEnv{correlationID: "run-1"}
	if err := x.run(context.Background(), env); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(order) != 3 || order[0] != "one" || order[2] != "three" {
		t.Errorf("unexpected step order %v", order)
	}

	// A started and a finished event per step.
	if len(events) != 6 {
		t.Fatalf("expected 6 progress events, got %d", len(events))
	}
	if events[0].Phase != "started" || events[0].Percent != 0 {
		t.Errorf("unexpected first event %+v", events[0])
	}
	final := events[len(events)-1]
	if final.Phase != "finished" || final.Percent != 100 {
		t.Errorf("unexpected final event %+v", final)
	}
}

func TestExecutorWeightedPercent(t *testing.T) {
	steps := []step{
		&scriptedStep{name: "small", weight: 10},
		&scriptedStep{name: "large", weight: 90},
	}

	var events []ProgressEvent
	x := newTestExecutor(t, steps, NewRunGuard(), func(ev ProgressEvent) { events = append(events, ev) })

	if err := x.run(context.Background(), &runEnv{correlationID: "run-1"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	// After the first step finishes, 10 of 100 weight is done.
	var afterSmall *ProgressEvent
	for i := range events {
		if events[i].Step == "small" && events[i].Phase == "finished" {
			afterSmall = &events[i]
		}
	}
	if afterSmall == nil {
		t.Fatal("missing finished event for small step")
	}
	if afterSmall.Percent != 10 {
		t.Errorf("expected 10 percent after small step, got %d", afterSmall.Percent)
	}
	if afterSmall.EtaMs < 0 {
		t.Error("expected an ETA estimate once weight is done")
	}
}

func TestExecutorStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	second := &scriptedStep{name: "second", weight: 50, run: func(context.Context, *runEnv) error {
		return NewStepError("second", "failed", boom)
	}}
	third := &scriptedStep{name: "third", weight: 25}
	steps := []step{&scriptedStep{name: "first", weight: 25}, second, third}

	x := newTestExecutor(t, steps, NewRunGuard(), func(ProgressEvent) {})

	err := x.run(context.Background(), &runEnv{correlationID: "run-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if KindOf(err) != KindStep {
		t.Errorf("expected step error kind, got %q", KindOf(err))
	}
	if third.calls != 0 {
		t.Error("expected no steps to run after a failure")
	}
}

func TestExecutorHonorsCancelBetweenSteps(t *testing.T) {
	guard := NewRunGuard()
	guard.Acquire("run-1")

	first := &scriptedStep{name: "first", weight: 50, run: func(context.Context, *runEnv) error {
		// Cancel lands while the step is in flight; it must finish and
		// the next step must never start.
		guard.RequestCancel()
		return nil
	}}
	second := &scriptedStep{name: "second", weight: 50}

	x := newTestExecutor(t, []step{first, second}, guard, func(ProgressEvent) {})

	err := x.run(context.Background(), &runEnv{correlationID: "run-1"})
	if !IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if first.calls != 1 {
		t.Errorf("expected in-flight step to complete, calls=%d", first.calls)
	}
	if second.calls != 0 {
		t.Error("expected no step to start after cancel")
	}

	var ierr *InstallError
	if errors.As(err, &ierr) && ierr.Step != "second" {
		t.Errorf("expected cancellation attributed to the next step, got %q", ierr.Step)
	}
}

func TestExecutorHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	step1 := &scriptedStep{name: "first", weight: 100}
	x := newTestExecutor(t, []step{step1}, NewRunGuard(), func(ProgressEvent) {})

	if err := x.run(ctx, &runEnv{correlationID: "run-1"}); !IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if step1.calls != 0 {
		t.Error("expected no steps to run under a cancelled context")
	}
}
