package telemetry

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.Logging.Format = "xml"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unsupported log format")
	}

	bad = DefaultConfig()
	bad.Tracing.Enabled = true
	bad.Tracing.Exporter = "jaeger"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unsupported exporter")
	}

	bad = DefaultConfig()
	bad.Tracing.Enabled = true
	bad.Tracing.SamplingRate = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for out-of-range sampling rate")
	}
}

func TestSetLogLevelAdjustsRunningLoggers(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	SetLogLevel("error")
	if got := zerolog.GlobalLevel(); got != zerolog.ErrorLevel {
		t.Errorf("global level = %v, want error", got)
	}

	SetLogLevel("debug")
	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Errorf("global level = %v, want debug", got)
	}

	// Unknown strings fall back to info rather than silencing logs.
	SetLogLevel("shouting")
	if got := zerolog.GlobalLevel(); got != zerolog.InfoLevel {
		t.Errorf("global level = %v, want info", got)
	}
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	// Every recorder must be callable without a registry.
	m.RecordInstallStarted()
	m.RecordInstallCompleted("completed", time.Second)
	m.RecordStepDuration("preflight", time.Millisecond)
	m.RecordConnectorRetry("postgres")
	m.RecordArchiveStep("verified")
	if err := m.StartServer(); err != nil {
		t.Errorf("disabled StartServer: %v", err)
	}
}

func TestMetricsEnabledRegisters(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "fieldline_test"})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordInstallStarted()
	m.RecordInstallCompleted("failed", 2*time.Second)
	m.RecordStepDuration("provision", 300*time.Millisecond)

	if m.Handler() == nil {
		t.Error("expected a live metrics handler")
	}
}

func TestNewTracerDisabled(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: false}, "fieldline", "test", "dev")
	if err != nil {
		t.Fatal(err)
	}
	_, span := tr.StartRunSpan(t.Context(), "run-1")
	span.End()
	if err := tr.Shutdown(t.Context()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
