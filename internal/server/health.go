package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/teemow/inboxpoll/internal/mail"
	"github.com/teemow/inboxpoll/internal/poller"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker provides liveness and readiness endpoints.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time

	// Updated by observed poll cycles.
	cycles    atomic.Int64
	delivered atomic.Int64
	lastPoll  atomic.Int64 // unix nanoseconds, 0 before the first cycle
}

// NewHealthChecker creates a HealthChecker. sc may be nil for commands that
// run without an MCP server.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// Attach links the checker to a server context created after it, so that
// readiness reflects the server's shutdown. Call before serving.
func (h *HealthChecker) Attach(sc *ServerContext) {
	h.serverContext = sc
}

// SetReady sets the readiness state.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the process is ready.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// Observe wraps p so that every completed cycle is recorded.
func (h *HealthChecker) Observe(p poller.Pollable) poller.Pollable {
	return observedPoller{next: p, health: h}
}

type observedPoller struct {
	next   poller.Pollable
	health *HealthChecker
}

func (o observedPoller) Poll(ctx context.Context, sender string) []mail.Message {
	messages := o.next.Poll(ctx, sender)
	o.health.cycles.Add(1)
	o.health.delivered.Add(int64(len(messages)))
	o.health.lastPoll.Store(time.Now().UnixNano())
	return messages
}

func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse is the JSON body of the liveness and readiness endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the JSON body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	Cycles    int64  `json:"poll_cycles"`
	Delivered int64  `json:"messages_delivered"`
	LastPoll  string `json:"last_poll,omitempty"`
}

// LivenessHandler returns the /healthz handler.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns the /readyz handler.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := make(map[string]string)
		allOk := true

		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			allOk = false
		} else {
			checks["ready"] = healthStatusOK
		}

		if h.isServerShuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			allOk = false
		} else {
			checks["shutdown"] = healthStatusOK
		}

		response := HealthResponse{Status: healthStatusOK, Checks: checks}
		status := http.StatusOK
		if !allOk {
			response.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// Snapshot reports the current status and poll counters.
func (h *HealthChecker) Snapshot() DetailedHealthResponse {
	response := DetailedHealthResponse{
		Status:    healthStatusOK,
		Uptime:    time.Since(h.startTime).Truncate(time.Second).String(),
		Cycles:    h.cycles.Load(),
		Delivered: h.delivered.Load(),
	}
	if ns := h.lastPoll.Load(); ns != 0 {
		response.LastPoll = time.Unix(0, ns).UTC().Format(time.RFC3339)
	}
	switch {
	case !h.ready.Load():
		response.Status = healthStatusNotReady
	case h.isServerShuttingDown():
		response.Status = healthStatusShuttingDown
	}
	return response
}

// DetailedHealthHandler returns the /healthz/detailed handler.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response := h.Snapshot()
		status := http.StatusOK
		if response.Status != healthStatusOK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// RegisterHealthEndpoints registers the health endpoints on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
