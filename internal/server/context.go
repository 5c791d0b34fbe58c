package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/teemow/inboxpoll/internal/instrumentation"
	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/poller"
)

// ServerContext holds what the MCP tools need: the poller, telemetry and a
// context that is cancelled on shutdown.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	poller   poller.Pollable
	metrics  *instrumentation.Metrics
	logger   logging.Logger
	mu       sync.RWMutex
	shutdown bool
}

// ContextOption configures a ServerContext.
type ContextOption func(*ServerContext)

// WithMetrics attaches the metrics recorder used by instrumented tools.
func WithMetrics(m *instrumentation.Metrics) ContextOption {
	return func(sc *ServerContext) {
		sc.metrics = m
	}
}

// WithLogger sets the logger handed to tools.
func WithLogger(l logging.Logger) ContextOption {
	return func(sc *ServerContext) {
		if l != nil {
			sc.logger = l
		}
	}
}

// NewServerContext creates a server context around p.
func NewServerContext(ctx context.Context, p poller.Pollable, opts ...ContextOption) (*ServerContext, error) {
	if p == nil {
		return nil, fmt.Errorf("poller is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		poller: p,
		logger: logging.Component("mcp"),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc, nil
}

// Context returns the server context. It is cancelled by Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Poller returns the poller tools run cycles with.
func (sc *ServerContext) Poller() poller.Pollable {
	return sc.poller
}

// Metrics returns the metrics recorder, or nil if none is configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() logging.Logger {
	return sc.logger
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
