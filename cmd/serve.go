package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/resources"
	"github.com/teemow/inboxpoll/internal/server"
	"github.com/teemow/inboxpoll/internal/tools/gmail_tools"
)

// Supported MCP transports.
const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		transport string
		httpAddr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the gmail_poll and
gmail_poll_senders tools to AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport on --http-addr, path /mcp

The server never starts the browser consent flow; run "inboxpoll auth" first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, a, cmd, transport, httpAddr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	addMetricsFlags(cmd)

	return cmd
}

func runServe(ctx context.Context, a *app, cmd *cobra.Command, transport, httpAddr string) error {
	if transport != transportStdio && transport != transportStreamableHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}

	provider, err := a.newInstrumentation(ctx, "serve")
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// stdin belongs to the MCP client, so consent can never be interactive.
	p, closeAdapter, err := a.newPoller(ctx, false, provider.Metrics())
	if err != nil {
		return err
	}
	defer func() { _ = closeAdapter() }()

	health := server.NewHealthChecker(nil)
	serverContext, err := server.NewServerContext(ctx, health.Observe(p),
		server.WithMetrics(provider.Metrics()),
		server.WithLogger(logging.NewSlogAdapter(logging.WithComponent(a.logger, "mcp"))),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() { _ = serverContext.Shutdown() }()

	health.Attach(serverContext)
	stopMetrics, err := a.startMetricsServer(provider, health)
	if err != nil {
		return err
	}
	defer stopMetrics()

	mcpSrv := newMCPServer()
	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		return err
	}
	if err := resources.RegisterStatusResource(mcpSrv, health); err != nil {
		return fmt.Errorf("failed to register resources: %w", err)
	}

	switch transport {
	case transportStreamableHTTP:
		return runStreamableHTTPServer(ctx, a, mcpSrv, health, httpAddr)
	default:
		return runStdioServer(ctx, mcpSrv, cmd.InOrStdin(), cmd.OutOrStdout())
	}
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("inboxpoll", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false),
	)
}

// registerAllTools registers every MCP tool.
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := gmail_tools.RegisterGmailTools(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register Gmail tools: %w", err)
	}
	return nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)
	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, a *app, mcpSrv *mcpserver.MCPServer, health *server.HealthChecker, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv))
	health.RegisterHealthEndpoints(mux)

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	a.logger.Info("streamable HTTP server starting", "addr", ln.Addr().String(), "path", "/mcp")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped with error: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, stopping HTTP server")
		health.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		return nil
	}
}
