package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxpoll/internal/instrumentation"
	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/poller"
)

// DefaultSystemPrompt opens every conversation.
const DefaultSystemPrompt = "You are a helpful assistant. Use the gmail_poll tool to check for " +
	"unread emails when the user requests it."

// state is the position of a user turn in the tool round trip.
type state int

const (
	// stateAwaitingModelReply: the model may answer or request tools.
	stateAwaitingModelReply state = iota
	// stateAwaitingToolResult: tools have run, the model must answer.
	stateAwaitingToolResult
)

// Agent holds one conversation in which the model can poll the mailbox.
// An Agent is not safe for concurrent use.
type Agent struct {
	completer Completer
	poller    poller.Pollable
	tools     []ToolSpec
	history   []Turn

	session string
	status  io.Writer
	logger  logging.Logger
	metrics *instrumentation.Metrics
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(l logging.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics records completion request outcomes.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if prompt != "" {
			a.history[0].Content = prompt
		}
	}
}

// WithStatusOutput receives progress lines such as "Checking Gmail...".
// Run sets it to its output writer.
func WithStatusOutput(w io.Writer) Option {
	return func(a *Agent) {
		if w != nil {
			a.status = w
		}
	}
}

// New creates an agent that answers with completer and polls with p.
func New(completer Completer, p poller.Pollable, opts ...Option) *Agent {
	a := &Agent{
		completer: completer,
		poller:    p,
		tools:     []ToolSpec{PollTool()},
		history:   []Turn{{Role: RoleSystem, Content: DefaultSystemPrompt}},
		session:   uuid.NewString(),
		status:    io.Discard,
	}
	a.logger = logging.NewSlogAdapter(logging.WithSession(logging.Component("chat").Logger(), a.session))
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Session returns the id attached to this conversation's log lines.
func (a *Agent) Session() string {
	return a.session
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []Turn {
	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}

// Respond runs one user turn and returns the assistant's reply.
//
// If the model requests tools, each call is answered (a gmail_poll call
// polls the mailbox) and one follow-up completion without tools produces the
// reply. Tool calls in that follow-up are not honoured.
func (a *Agent) Respond(ctx context.Context, input string) (string, error) {
	a.append(Turn{Role: RoleUser, Content: input})

	st := stateAwaitingModelReply
	var reply Reply
	for {
		switch st {
		case stateAwaitingModelReply:
			var err error
			reply, err = a.complete(ctx, a.tools)
			if err != nil {
				return "", err
			}
			if len(reply.ToolCalls) == 0 {
				a.append(Turn{Role: RoleAssistant, Content: reply.Content})
				return reply.Content, nil
			}
			a.append(Turn{Role: RoleAssistant, Content: reply.Content, ToolCalls: reply.ToolCalls})
			st = stateAwaitingToolResult

		case stateAwaitingToolResult:
			for _, call := range reply.ToolCalls {
				a.append(Turn{Role: RoleTool, ToolCallID: call.ID, Content: a.invoke(ctx, call)})
			}
			final, err := a.complete(ctx, nil)
			if err != nil {
				return "", err
			}
			a.append(Turn{Role: RoleAssistant, Content: final.Content})
			return final.Content, nil
		}
	}
}

// invoke runs one tool call and returns its result payload.
func (a *Agent) invoke(ctx context.Context, call ToolCall) string {
	if call.Name != PollToolName {
		a.logger.Warn("model requested unknown tool", logging.Tool(call.Name))
		return toolError(fmt.Errorf("unknown tool %q", call.Name))
	}

	sender, err := parsePollArgs(call.Arguments)
	if err != nil {
		a.logger.Warn("invalid tool arguments", logging.Tool(call.Name), logging.Err(err))
		return toolError(err)
	}

	fmt.Fprintln(a.status, "Checking Gmail...")
	messages := a.poller.Poll(ctx, sender)
	fmt.Fprintln(a.status, foundLine(len(messages)))

	a.logger.Info("tool call complete", logging.Tool(call.Name), logging.Sender(sender), logging.Count(len(messages)))

	payload, err := EncodeMessages(messages)
	if err != nil {
		return toolError(err)
	}
	return payload
}

func (a *Agent) complete(ctx context.Context, tools []ToolSpec) (Reply, error) {
	start := time.Now()
	reply, err := a.completer.Complete(ctx, a.History(), tools)
	if err != nil {
		a.metrics.RecordCompletion(ctx, instrumentation.StatusError)
		a.logger.Warn("completion failed", logging.Err(err), "elapsed", time.Since(start))
		return Reply{}, fmt.Errorf("completion failed: %w", err)
	}
	a.metrics.RecordCompletion(ctx, instrumentation.StatusSuccess)
	a.logger.Debug("completion received", logging.Count(len(reply.ToolCalls)), "elapsed", time.Since(start))
	return reply, nil
}

func (a *Agent) append(t Turn) {
	a.history = append(a.history, t)
}

func foundLine(n int) string {
	if n == 1 {
		return "Found 1 unread email."
	}
	return fmt.Sprintf("Found %d unread emails.", n)
}

// Run reads user input line by line from in and writes replies to out
// until the user types "exit" or "quit", input ends, or ctx is cancelled.
// A failed completion prints a diagnostic and the session continues.
func (a *Agent) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	a.status = out
	lines := readLines(ctx, in)

	fmt.Fprintln(out, "Type 'exit' to quit.")
	for {
		fmt.Fprint(out, "User > ")

		var (
			next inputLine
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case next, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			return nil
		}
		if next.err != nil {
			return fmt.Errorf("failed to read input: %w", next.err)
		}

		text := strings.TrimSpace(next.text)
		if isExit(text) {
			return nil
		}
		if text == "" {
			continue
		}

		reply, err := a.Respond(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %s\n", diagnostic(err))
			continue
		}
		fmt.Fprintln(out, reply)
	}
}

func isExit(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exit", "quit":
		return true
	}
	return false
}

// diagnostic reduces an error chain to its innermost message.
func diagnostic(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

type inputLine struct {
	text string
	err  error
}

// readLines feeds lines from r into a channel so reads can be abandoned on
// cancellation. The channel is closed at end of input.
func readLines(ctx context.Context, r io.Reader) <-chan inputLine {
	ch := make(chan inputLine)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- inputLine{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- inputLine{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}
