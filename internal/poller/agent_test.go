package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/mail"
	"github.com/teemow/inboxpoll/internal/mail/mailtest"
)

// scriptedPoller returns batches in order, then empty results.
type scriptedPoller struct {
	mu      sync.Mutex
	batches [][]mail.Message
	calls   int
	senders []string
	// onPoll runs after each call with the 1-based call count.
	onPoll func(n int)
}

func (s *scriptedPoller) Poll(_ context.Context, sender string) []mail.Message {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.senders = append(s.senders, sender)
	var out []mail.Message
	if len(s.batches) > 0 {
		out = s.batches[0]
		s.batches = s.batches[1:]
	}
	hook := s.onPoll
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if out == nil {
		out = []mail.Message{}
	}
	return out
}

func (s *scriptedPoller) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recordingHandler collects surfaced messages.
type recordingHandler struct {
	mu   sync.Mutex
	seen []mail.Message
}

func (r *recordingHandler) handle(_ context.Context, msg mail.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
}

func (r *recordingHandler) Seen() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.seen...)
}

func TestNewAgent_Validation(t *testing.T) {
	_, err := NewAgent(nil, "", time.Second)
	assert.Error(t, err)

	_, err = NewAgent(&scriptedPoller{}, "", -time.Second)
	assert.Error(t, err)

	a, err := NewAgent(&scriptedPoller{}, "", 0)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestAgent_SurfacesEachMessageOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sp := &scriptedPoller{
		batches: [][]mail.Message{{{ID: "1", Snippet: "a"}, {ID: "2", Snippet: "b"}}},
	}
	sp.onPoll = func(n int) {
		if n >= 3 {
			cancel()
		}
	}
	rec := &recordingHandler{}

	a, err := NewAgent(sp, "", 0, WithHandler(rec.handle), WithAgentLogger(logging.Discard()))
	require.NoError(t, err)

	err = a.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, sp.Calls(), 2)
	assert.Equal(t, []mail.Message{{ID: "1", Snippet: "a"}, {ID: "2", Snippet: "b"}}, rec.Seen())
}

func TestAgent_EndToEndWithPoller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := mailtest.NewFake(
		mailtest.Entry{ID: "1", From: "x@example.com", Snippet: "hello"},
		mailtest.Entry{ID: "2", From: "x@example.com", Snippet: "world"},
	)
	p := New(fake, WithLogger(logging.Discard()))

	var cycles int
	rec := &recordingHandler{}
	a, err := NewAgent(p, "x@example.com", 0, WithHandler(rec.handle), WithAgentLogger(logging.Discard()))
	require.NoError(t, err)
	a.after = func(time.Duration) <-chan time.Time {
		cycles++
		if cycles >= 2 {
			cancel()
		}
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	err = a.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.Seen(), 2)
	assert.GreaterOrEqual(t, len(fake.Queries()), 2)
}

func TestAgent_CancelDuringWaitReturnsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sp := &scriptedPoller{}
	a, err := NewAgent(sp, "", time.Hour, WithAgentLogger(logging.Discard()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return sp.Calls() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, 1, sp.Calls())
}

func TestAgent_AlreadyCancelledDoesNotPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger, buf := captureLogger()
	sp := &scriptedPoller{}
	a, err := NewAgent(sp, "", time.Second, WithAgentLogger(logger))
	require.NoError(t, err)

	err = a.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sp.Calls())
	assert.Contains(t, buf.String(), "polling cancelled")
}

func TestAgent_InFlightPollIsNotCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := mailtest.NewFake(
		mailtest.Entry{ID: "1", Snippet: "a"},
		mailtest.Entry{ID: "2", Snippet: "b"},
	)
	inner := New(fake, WithLogger(logging.Discard()))

	// Cancel in the middle of the cycle; the poller must still see a live
	// context and finish marking every message.
	var pollCtxErr error
	wrapped := pollFunc(func(pctx context.Context, sender string) []mail.Message {
		cancel()
		pollCtxErr = pctx.Err()
		return inner.Poll(pctx, sender)
	})

	rec := &recordingHandler{}
	a, err := NewAgent(wrapped, "", time.Hour, WithHandler(rec.handle), WithAgentLogger(logging.Discard()))
	require.NoError(t, err)

	err = a.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, pollCtxErr)
	assert.Equal(t, []string{"1", "2"}, fake.Marked())
	assert.Len(t, rec.Seen(), 2, "messages of a finished cycle are surfaced before stopping")
}

func TestAgent_IntervalAndOverride(t *testing.T) {
	tests := []struct {
		name string
		opts []RunOption
		want time.Duration
	}{
		{name: "constructor interval", want: 10 * time.Second},
		{name: "per-run override", opts: []RunOption{WithRunInterval(2 * time.Second)}, want: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := NewAgent(&scriptedPoller{}, "", 10*time.Second, WithAgentLogger(logging.Discard()))
			require.NoError(t, err)

			var waits []time.Duration
			a.after = func(d time.Duration) <-chan time.Time {
				waits = append(waits, d)
				if len(waits) == 3 {
					cancel()
				}
				ch := make(chan time.Time, 1)
				ch <- time.Now()
				return ch
			}

			err = a.Run(ctx, tt.opts...)
			assert.ErrorIs(t, err, context.Canceled)

			require.NotEmpty(t, waits)
			for _, d := range waits {
				assert.Equal(t, tt.want, d)
			}
		})
	}

	// The override applies to one invocation only.
	t.Run("override does not stick", func(t *testing.T) {
		a, err := NewAgent(&scriptedPoller{}, "", 10*time.Second, WithAgentLogger(logging.Discard()))
		require.NoError(t, err)

		for _, opts := range [][]RunOption{{WithRunInterval(2 * time.Second)}, nil} {
			ctx, cancel := context.WithCancel(context.Background())
			var got time.Duration
			a.after = func(d time.Duration) <-chan time.Time {
				got = d
				cancel()
				return make(chan time.Time)
			}
			_ = a.Run(ctx, opts...)
			cancel()
			if opts == nil {
				assert.Equal(t, 10*time.Second, got)
			} else {
				assert.Equal(t, 2*time.Second, got)
			}
		}
	})
}

func TestAgent_DefaultHandlerLogsMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, buf := captureLogger()
	sp := &scriptedPoller{batches: [][]mail.Message{{{ID: "abc", Snippet: "hi there"}}}}
	sp.onPoll = func(int) { cancel() }

	a, err := NewAgent(sp, "", time.Hour, WithAgentLogger(logger))
	require.NoError(t, err)

	_ = a.Run(ctx)

	out := buf.String()
	assert.Contains(t, out, "new email")
	assert.Contains(t, out, "id=abc")
	assert.Contains(t, out, `snippet="hi there"`)
	assert.Contains(t, out, "polling cancelled")
}

type pollFunc func(ctx context.Context, sender string) []mail.Message

func (f pollFunc) Poll(ctx context.Context, sender string) []mail.Message { return f(ctx, sender) }
