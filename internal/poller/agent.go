package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/mail"
)

// DefaultInterval is the wait between poll cycles when none is configured.
const DefaultInterval = 60 * time.Second

// Pollable is the part of Poller the Agent depends on.
type Pollable interface {
	Poll(ctx context.Context, sender string) []mail.Message
}

// Handler is called once per newly observed message, in result order.
type Handler func(ctx context.Context, msg mail.Message)

// Agent polls on a fixed interval until its context is cancelled.
type Agent struct {
	poller   Pollable
	sender   string
	interval time.Duration
	logger   logging.Logger
	handler  Handler

	// after is time.After, replaced in tests.
	after func(time.Duration) <-chan time.Time
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithAgentLogger sets the agent's logger.
func WithAgentLogger(l logging.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithHandler replaces the default handler, which logs one line per message.
func WithHandler(h Handler) AgentOption {
	return func(a *Agent) {
		if h != nil {
			a.handler = h
		}
	}
}

// NewAgent creates an agent polling for mail from sender (empty for all
// senders) every interval.
func NewAgent(p Pollable, sender string, interval time.Duration, opts ...AgentOption) (*Agent, error) {
	if p == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if interval < 0 {
		return nil, fmt.Errorf("interval must not be negative, got %s", interval)
	}

	a := &Agent{
		poller:   p,
		sender:   sender,
		interval: interval,
		logger:   logging.Component("agent"),
		after:    time.After,
	}
	a.handler = a.logMessage
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type runConfig struct {
	interval time.Duration
}

// RunOption adjusts a single Run invocation.
type RunOption func(*runConfig)

// WithRunInterval overrides the agent's interval for one Run call.
func WithRunInterval(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d >= 0 {
			c.interval = d
		}
	}
}

// Run polls, surfaces each new message to the handler, waits, and repeats.
// It blocks until ctx is cancelled and then returns ctx.Err().
//
// A cycle that has started runs to completion even if ctx is cancelled
// meanwhile, so no message is left fetched but unmarked. The wait between
// cycles is interrupted immediately.
func (a *Agent) Run(ctx context.Context, opts ...RunOption) error {
	cfg := runConfig{interval: a.interval}
	for _, opt := range opts {
		opt(&cfg)
	}

	a.logger.Info("polling started", logging.Sender(a.sender), logging.Interval(cfg.interval))

	for {
		if ctx.Err() != nil {
			return a.cancelled(ctx)
		}

		messages := a.poller.Poll(context.WithoutCancel(ctx), a.sender)
		for _, msg := range messages {
			a.handler(ctx, msg)
		}

		select {
		case <-ctx.Done():
			return a.cancelled(ctx)
		case <-a.after(cfg.interval):
		}
	}
}

func (a *Agent) cancelled(ctx context.Context) error {
	a.logger.Info("polling cancelled")
	return ctx.Err()
}

func (a *Agent) logMessage(_ context.Context, msg mail.Message) {
	a.logger.Info("new email", logging.MessageID(msg.ID), logging.Snippet(msg.Snippet))
}
