// Package observability bundles the service's operational concerns:
// structured slog logging, Prometheus metrics, health probes, OpenTelemetry
// tracing/metrics export, and graceful shutdown.
package observability
