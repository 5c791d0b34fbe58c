package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxpoll/internal/instrumentation"
	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/server"
)

func addMetricsFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("metrics-enabled", false, "Serve Prometheus metrics and health endpoints")
	cmd.Flags().String("metrics-addr", server.DefaultMetricsAddr, "Metrics server address")
	cmd.Flags().String("metrics-exporter", instrumentation.ExporterPrometheus, "Metrics exporter: prometheus, otlp or stdout")
	cmd.Flags().String("tracing-exporter", instrumentation.ExporterNone, "Tracing exporter: otlp, stdout or none")
	cmd.Flags().String("otlp-endpoint", "", "OTLP collector endpoint (host:port)")
	cmd.Flags().Bool("otlp-insecure", false, "Send OTLP over plain HTTP")
	cmd.Flags().Float64("trace-sampling-rate", 0.1, "Fraction of traces sampled (0.0 to 1.0)")
}

// startMetricsServer starts the metrics server when enabled and returns a
// function that stops it.
func (a *app) startMetricsServer(provider *instrumentation.Provider, health *server.HealthChecker) (func(), error) {
	if !a.cfg.Metrics.Enabled || !provider.ServesPrometheus() {
		return func() {}, nil
	}

	srv, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    a.cfg.Metrics.Addr,
		InstrumentationProvider: provider,
		Health:                  health,
		Logger:                  logging.NewSlogAdapter(logging.WithComponent(a.logger, "metrics")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Listen before returning so a taken port fails the command.
	ln, err := net.Listen("tcp", srv.Addr())
	if err != nil {
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil {
			a.logger.Error("metrics server stopped", logging.Err(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}, nil
}
