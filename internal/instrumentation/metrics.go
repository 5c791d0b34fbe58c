package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrResult    = "result"
	attrStage     = "stage"
	attrProvider  = "provider"
	attrOperation = "operation"
	attrStatus    = "status"
	attrTool      = "tool"
)

// Metrics provides methods for recording observability metrics.
// A zero Metrics (or a nil *Metrics) records nothing.
type Metrics struct {
	// Poll cycle metrics
	pollCyclesTotal   metric.Int64Counter
	pollCycleDuration metric.Float64Histogram
	pollMessagesTotal metric.Int64Counter
	pollFailuresTotal metric.Int64Counter

	// Mail provider call metrics
	providerOperationsTotal   metric.Int64Counter
	providerOperationDuration metric.Float64Histogram

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Chat completion metrics
	completionsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.pollCyclesTotal, err = meter.Int64Counter(
		"poll_cycles_total",
		metric.WithDescription("Total number of poll cycles by result"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_cycles_total counter: %w", err)
	}

	m.pollCycleDuration, err = meter.Float64Histogram(
		"poll_cycle_duration_seconds",
		metric.WithDescription("Duration of one search/fetch/mark-read cycle in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_cycle_duration_seconds histogram: %w", err)
	}

	m.pollMessagesTotal, err = meter.Int64Counter(
		"poll_messages_total",
		metric.WithDescription("Total number of messages delivered by poll cycles"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_messages_total counter: %w", err)
	}

	m.pollFailuresTotal, err = meter.Int64Counter(
		"poll_message_failures_total",
		metric.WithDescription("Total number of per-message failures by stage"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll_message_failures_total counter: %w", err)
	}

	m.providerOperationsTotal, err = meter.Int64Counter(
		"mail_provider_operations_total",
		metric.WithDescription("Total number of mail provider calls"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_provider_operations_total counter: %w", err)
	}

	m.providerOperationDuration, err = meter.Float64Histogram(
		"mail_provider_operation_duration_seconds",
		metric.WithDescription("Mail provider call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_provider_operation_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	m.completionsTotal, err = meter.Int64Counter(
		"chat_completions_total",
		metric.WithDescription("Total number of chat completion requests by status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat_completions_total counter: %w", err)
	}

	return m, nil
}

// RecordPollCycle records one finished poll cycle.
//
// Parameters:
//   - result: PollOK or PollSearchFailed
//   - delivered: number of messages returned to the caller
//   - duration: wall time of the whole cycle
func (m *Metrics) RecordPollCycle(ctx context.Context, result string, delivered int, duration time.Duration) {
	if m == nil || m.pollCyclesTotal == nil || m.pollCycleDuration == nil || m.pollMessagesTotal == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrResult, result))
	m.pollCyclesTotal.Add(ctx, 1, attrs)
	m.pollCycleDuration.Record(ctx, duration.Seconds(), attrs)
	if delivered > 0 {
		m.pollMessagesTotal.Add(ctx, int64(delivered))
	}
}

// RecordMessageFailure records a skipped fetch or a failed mark-read.
func (m *Metrics) RecordMessageFailure(ctx context.Context, stage string) {
	if m == nil || m.pollFailuresTotal == nil {
		return
	}

	m.pollFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStage, stage)))
}

// RecordProviderOperation records a single mail provider call.
//
// Parameters:
//   - provider: "gmail" or "imap"
//   - operation: "search", "fetch" or "mark_read"
//   - status: StatusSuccess or StatusError
func (m *Metrics) RecordProviderOperation(ctx context.Context, provider, operation, status string, duration time.Duration) {
	if m == nil || m.providerOperationsTotal == nil || m.providerOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)

	m.providerOperationsTotal.Add(ctx, 1, attrs)
	m.providerOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)

	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCompletion records one chat completion request.
func (m *Metrics) RecordCompletion(ctx context.Context, status string) {
	if m == nil || m.completionsTotal == nil {
		return
	}

	m.completionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}
