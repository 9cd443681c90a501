package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for install runs. A disabled
// instance is a safe no-op so call sites never branch.
type Metrics struct {
	config MetricsConfig

	installsStarted   prometheus.Counter
	installsCompleted *prometheus.CounterVec
	installDuration   *prometheus.HistogramVec
	stepDuration      *prometheus.HistogramVec
	connectorRetries  *prometheus.CounterVec
	archiveStepsRun   *prometheus.CounterVec
	activeInstall     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		installsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_started_total",
			Help:      "Total number of install runs started",
		}),
		installsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_completed_total",
			Help:      "Total number of install runs completed, by terminal status",
		}, []string{"status"}),
		installDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_duration_seconds",
			Help:      "Duration of complete install runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_step_duration_seconds",
			Help:      "Duration of individual install steps in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		connectorRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connector_retries_total",
			Help:      "Database connection test retries, by engine",
		}, []string{"engine"}),
		archiveStepsRun: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_steps_total",
			Help:      "Archive verification step outcomes",
		}, []string{"status"}),
		activeInstall: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "install_active",
			Help:      "1 while an install run is active, 0 otherwise",
		}),
	}

	registry.MustRegister(
		m.installsStarted,
		m.installsCompleted,
		m.installDuration,
		m.stepDuration,
		m.connectorRetries,
		m.archiveStepsRun,
		m.activeInstall,
	)

	return m, nil
}

// RecordInstallStarted marks a run as started.
func (m *Metrics) RecordInstallStarted() {
	if m.registry == nil {
		return
	}
	m.installsStarted.Inc()
	m.activeInstall.Set(1)
}

// RecordInstallCompleted marks a run as finished with a terminal status.
func (m *Metrics) RecordInstallCompleted(status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.installsCompleted.WithLabelValues(status).Inc()
	m.installDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeInstall.Set(0)
}

// RecordStepDuration observes one step's execution time.
func (m *Metrics) RecordStepDuration(step string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordConnectorRetry counts a connection test retry.
func (m *Metrics) RecordConnectorRetry(engine string) {
	if m.registry == nil {
		return
	}
	m.connectorRetries.WithLabelValues(engine).Inc()
}

// RecordArchiveStep counts one archive verification step outcome.
func (m *Metrics) RecordArchiveStep(status string) {
	if m.registry == nil {
		return
	}
	m.archiveStepsRun.WithLabelValues(status).Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves the metrics endpoint in the background.
func (m *Metrics) StartServer() error {
	if m.registry == nil {
		return nil
	}
	if m.config.ListenAddress == "" {
		return fmt.Errorf("metrics listen address is required")
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	go func() {
		_ = http.ListenAndServe(m.config.ListenAddress, mux)
	}()
	return nil
}
