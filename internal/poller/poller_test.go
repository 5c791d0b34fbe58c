package poller

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/mail"
	"github.com/teemow/inboxpoll/internal/mail/mailtest"
)

func captureLogger() (*logging.SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return logging.NewSlogAdapter(slog.New(h)), &buf
}

func threeUnread() *mailtest.Fake {
	return mailtest.NewFake(
		mailtest.Entry{ID: "m1", From: "a@example.com", Snippet: "first"},
		mailtest.Entry{ID: "m2", From: "b@example.com", Snippet: "second"},
		mailtest.Entry{ID: "m3", From: "a@example.com", Snippet: "third"},
	)
}

func TestPoll_ReturnsAllInOrderAndMarksEach(t *testing.T) {
	fake := threeUnread()
	p := New(fake, WithLogger(logging.Discard()))

	got := p.Poll(context.Background(), "")

	assert.Equal(t, []mail.Message{
		{ID: "m1", Snippet: "first"},
		{ID: "m2", Snippet: "second"},
		{ID: "m3", Snippet: "third"},
	}, got)
	assert.Equal(t, []string{"m1", "m2", "m3"}, fake.Fetched())
	assert.Equal(t, []string{"m1", "m2", "m3"}, fake.Marked())
	assert.Empty(t, fake.Unread())
}

func TestPoll_SenderFilter(t *testing.T) {
	fake := threeUnread()
	p := New(fake, WithLogger(logging.Discard()))

	got := p.Poll(context.Background(), "a@example.com")

	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m3", got[1].ID)
	assert.Equal(t, []string{"m2"}, fake.Unread())

	queries := fake.Queries()
	require.Len(t, queries, 1)
	assert.Contains(t, queries[0].Expression(), "from:a@example.com")
	assert.Contains(t, queries[0].Expression(), "is:unread")
}

func TestPoll_NoSenderQueriesAllUnread(t *testing.T) {
	fake := threeUnread()
	p := New(fake, WithLogger(logging.Discard()))

	p.Poll(context.Background(), "")

	queries := fake.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "is:unread", queries[0].Expression())
}

func TestPoll_SearchFailureFailsOpen(t *testing.T) {
	fake := threeUnread()
	fake.SearchErr = errors.New("connection reset")
	logger, buf := captureLogger()
	p := New(fake, WithLogger(logger))

	got := p.Poll(context.Background(), "")

	require.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, fake.Fetched())
	assert.Empty(t, fake.Marked())
	assert.Contains(t, buf.String(), "search for unread messages failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestPoll_SecondPollIsEmpty(t *testing.T) {
	fake := threeUnread()
	p := New(fake, WithLogger(logging.Discard()))

	first := p.Poll(context.Background(), "")
	second := p.Poll(context.Background(), "")

	assert.Len(t, first, 3)
	assert.NotNil(t, second)
	assert.Empty(t, second)
}

func TestPoll_FetchFailureSkipsMessage(t *testing.T) {
	fake := threeUnread()
	fake.FetchErr["m2"] = errors.New("500 backend error")
	logger, buf := captureLogger()
	p := New(fake, WithLogger(logger))

	got := p.Poll(context.Background(), "")

	assert.Equal(t, []mail.Message{{ID: "m1", Snippet: "first"}, {ID: "m3", Snippet: "third"}}, got)
	assert.Equal(t, []string{"m1", "m2", "m3"}, fake.Fetched())
	assert.Equal(t, []string{"m1", "m3"}, fake.Marked(), "a message that was not fetched must not be marked")
	assert.Equal(t, []string{"m2"}, fake.Unread())
	assert.Contains(t, buf.String(), "fetch failed, skipping message")
}

func TestPoll_MarkReadFailureKeepsMessage(t *testing.T) {
	fake := threeUnread()
	fake.MarkErr["m1"] = errors.New("timeout")
	logger, buf := captureLogger()
	p := New(fake, WithLogger(logger))

	got := p.Poll(context.Background(), "")

	assert.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, fake.Marked())
	assert.Equal(t, []string{"m1"}, fake.Unread())
	assert.Contains(t, buf.String(), "mark read failed")
}

func TestPoll_EmptyMailbox(t *testing.T) {
	p := New(mailtest.NewFake(), WithLogger(logging.Discard()))

	got := p.Poll(context.Background(), "")

	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPoll_MaxResults(t *testing.T) {
	fake := threeUnread()
	p := New(fake, WithLogger(logging.Discard()), WithMaxResults(2))

	got := p.Poll(context.Background(), "")
	assert.Len(t, got, 2)
	assert.Equal(t, []string{"m3"}, fake.Unread())

	// The remainder is picked up by the next cycle.
	got = p.Poll(context.Background(), "")
	require.Len(t, got, 1)
	assert.Equal(t, "m3", got[0].ID)
}

func TestPoll_MaxResultsZeroIsUnlimited(t *testing.T) {
	fake := threeUnread()
	p := New(fake, WithLogger(logging.Discard()), WithMaxResults(0))

	assert.Len(t, p.Poll(context.Background(), ""), 3)
}

func TestNew_ProviderName(t *testing.T) {
	p := New(mailtest.NewFake())
	assert.Equal(t, "fake", p.provider)
}
