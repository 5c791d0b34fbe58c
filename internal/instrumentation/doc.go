// Package instrumentation provides OpenTelemetry instrumentation for inboxpoll.
//
// # Metrics
//
// Poll cycles:
//   - poll_cycles_total: Counter of poll cycles by result (ok, search_failed)
//   - poll_cycle_duration_seconds: Histogram of cycle durations
//   - poll_messages_total: Counter of messages handed to callers
//   - poll_message_failures_total: Counter of per-message failures by stage
//
// Mail provider calls:
//   - mail_provider_operations_total: Counter by provider, operation, status
//   - mail_provider_operation_duration_seconds: Histogram of call durations
//
// MCP tools and chat:
//   - mcp_tool_invocations_total / mcp_tool_duration_seconds
//   - chat_completions_total: Counter of completion requests by status
//
// # Tracing
//
// Spans are created for each poll cycle (poll.<provider>) and each MCP tool
// invocation (tool.<name>). Sender addresses are never attached to spans.
//
// # Exporters
//
// Metrics: prometheus (default, served by the metrics server), otlp, stdout.
// Traces: none (default), otlp, stdout. The stdout exporters write to
// Config.Output, stderr by default.
//
// The resource carries service.name, service.version, service.instance.id
// and, when set, inboxpoll.mail_provider and inboxpoll.command.
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(ctx)
//
//	p := poller.New(adapter, poller.WithMetrics(provider.Metrics()))
package instrumentation
