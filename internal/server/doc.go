// Package server holds the runtime pieces shared by the long-running
// commands.
//
// ServerContext carries the poller and telemetry into the MCP tool handlers
// and is cancelled on shutdown.
//
// HealthChecker serves liveness and readiness probes. Wrapping a poller with
// HealthChecker.Observe makes the detailed endpoint report when the last poll
// cycle finished and how many messages were delivered so far.
//
// MetricsServer exposes Prometheus metrics and the health endpoints on a
// dedicated address, separate from the MCP transport.
package server
