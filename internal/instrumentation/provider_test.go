package instrumentation

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	config := Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	}

	provider, err := NewProvider(context.Background(), config)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if provider == nil {
		t.Fatal("expected provider to be non-nil")
	}

	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}

	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}

	if provider.ServesPrometheus() {
		t.Error("expected disabled provider not to serve prometheus")
	}

	// Recording on the no-op metrics must not panic
	provider.Metrics().RecordPollCycle(context.Background(), PollOK, 3, time.Second)

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	config := Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() {
		t.Error("expected provider to be enabled")
	}

	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil")
	}

	if !provider.ServesPrometheus() {
		t.Error("expected prometheus exporter to be served")
	}

	if provider.Resource() == nil {
		t.Error("expected resource to be non-nil")
	}
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	var out bytes.Buffer
	config := Config{
		Output:            &out,
		ServiceName:       "test-service",
		ServiceVersion:    "1.0.0",
		Enabled:           true,
		MetricsExporter:   ExporterStdout,
		TracingExporter:   ExporterStdout,
		TraceSamplingRate: 1.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if provider.ServesPrometheus() {
		t.Error("expected stdout exporter not to serve prometheus")
	}

	_, span := StartPollSpan(ctx, "imap", false)
	span.End()
	if err := provider.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !strings.Contains(out.String(), "poll.imap") {
		t.Errorf("expected the poll span on the configured output, got %q", out.String())
	}
}

func TestNewProvider_ResourceAttributes(t *testing.T) {
	config := DefaultConfig()
	config.ServiceName = "test-resource"
	config.MetricsExporter = ExporterStdout
	config.MailProvider = "imap"
	config.Command = "serve"
	config.Output = io.Discard

	ctx := context.Background()
	provider, err := NewProvider(ctx, config)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	attrs := make(map[string]string)
	for _, kv := range provider.Resource().Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[ResourceAttrMailProvider] != "imap" {
		t.Errorf("expected mail provider 'imap', got %q", attrs[ResourceAttrMailProvider])
	}
	if attrs[ResourceAttrCommand] != "serve" {
		t.Errorf("expected command 'serve', got %q", attrs[ResourceAttrCommand])
	}
	if attrs["service.name"] != "test-resource" {
		t.Errorf("expected service name 'test-resource', got %q", attrs["service.name"])
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	config := Config{
		Enabled:           true,
		MetricsExporter:   "invalid",
		TraceSamplingRate: 0.1,
	}

	_, err := NewProvider(context.Background(), config)
	if err == nil {
		t.Error("expected error for invalid exporter")
	}
}
