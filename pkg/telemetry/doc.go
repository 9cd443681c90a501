// Package telemetry provides the installer's observability stack:
// structured logging via zerolog, Prometheus metrics for install runs and
// steps, and OpenTelemetry tracing with stdout and OTLP exporters.
package telemetry
