package poller

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxpoll/internal/instrumentation"
	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/mail"
)

// DefaultMaxResults caps the number of messages handled in one cycle.
const DefaultMaxResults = 100

// Provider operation names used in metrics.
const (
	opSearch   = "search"
	opFetch    = "fetch"
	opMarkRead = "mark_read"
)

// namer is implemented by adapters that report a provider name for logs and
// metrics.
type namer interface {
	Name() string
}

// Poller runs one search/fetch/mark-read cycle against a mail adapter.
// It holds no state besides its configuration and is safe to call from
// multiple goroutines if the adapter is.
type Poller struct {
	adapter    mail.Adapter
	provider   string
	maxResults int
	logger     logging.Logger
	metrics    *instrumentation.Metrics
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger. The default logs through slog.Default().
func WithLogger(l logging.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records poll cycle and provider call metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithMaxResults limits how many unread messages one cycle processes.
// Zero or a negative value removes the limit.
func WithMaxResults(n int) Option {
	return func(p *Poller) {
		p.maxResults = n
	}
}

// New creates a Poller over the given adapter.
func New(adapter mail.Adapter, opts ...Option) *Poller {
	p := &Poller{
		adapter:    adapter,
		provider:   "mail",
		maxResults: DefaultMaxResults,
		logger:     logging.Component("poller"),
	}
	if n, ok := adapter.(namer); ok {
		p.provider = n.Name()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll returns the unread messages matching sender, in search order, and
// marks each one read. An empty sender matches every unread message.
//
// Poll never fails. A search error yields an empty result. A message that
// cannot be fetched is skipped and left unread; a message that was fetched
// but could not be marked read is still returned and may show up again in a
// later cycle. The returned slice is never nil.
func (p *Poller) Poll(ctx context.Context, sender string) []mail.Message {
	start := time.Now()
	q := mail.Query{Sender: sender}

	ctx, span := instrumentation.StartPollSpan(ctx, p.provider, strings.TrimSpace(sender) != "")
	defer span.End()

	refs, err := p.search(ctx, q)
	if err != nil {
		// Fail open: callers loop forever and must not see transient
		// provider errors.
		p.logger.Warn("search for unread messages failed",
			logging.Provider(p.provider), logging.Sender(sender), logging.Err(err))
		instrumentation.SetSpanError(span, err)
		p.metrics.RecordPollCycle(ctx, instrumentation.PollSearchFailed, 0, time.Since(start))
		return []mail.Message{}
	}

	if p.maxResults > 0 && len(refs) > p.maxResults {
		p.logger.Debug("truncating unread batch",
			logging.Count(len(refs)), "limit", p.maxResults)
		refs = refs[:p.maxResults]
	}

	messages := make([]mail.Message, 0, len(refs))
	for _, ref := range refs {
		msg, err := p.fetch(ctx, ref)
		if err != nil {
			p.logger.Warn("fetch failed, skipping message",
				logging.Provider(p.provider), logging.MessageID(ref.ID), logging.Err(err))
			p.metrics.RecordMessageFailure(ctx, instrumentation.StageFetch)
			continue
		}
		messages = append(messages, msg)

		if err := p.markRead(ctx, ref); err != nil {
			p.logger.Warn("mark read failed, message may be delivered again",
				logging.Provider(p.provider), logging.MessageID(ref.ID), logging.Err(err))
			p.metrics.RecordMessageFailure(ctx, instrumentation.StageMarkRead)
		}
	}

	span.SetAttributes(attribute.Int(instrumentation.SpanAttrCount, len(messages)))
	instrumentation.SetSpanSuccess(span)
	p.metrics.RecordPollCycle(ctx, instrumentation.PollOK, len(messages), time.Since(start))

	p.logger.Debug("poll cycle complete",
		logging.Provider(p.provider), logging.Sender(sender), logging.Count(len(messages)))

	return messages
}

func (p *Poller) search(ctx context.Context, q mail.Query) ([]mail.Ref, error) {
	start := time.Now()
	refs, err := p.adapter.SearchUnread(ctx, q)
	p.observe(ctx, opSearch, start, err)
	return refs, err
}

func (p *Poller) fetch(ctx context.Context, ref mail.Ref) (mail.Message, error) {
	start := time.Now()
	msg, err := p.adapter.Fetch(ctx, ref)
	p.observe(ctx, opFetch, start, err)
	return msg, err
}

func (p *Poller) markRead(ctx context.Context, ref mail.Ref) error {
	start := time.Now()
	err := p.adapter.MarkRead(ctx, ref)
	p.observe(ctx, opMarkRead, start, err)
	return err
}

func (p *Poller) observe(ctx context.Context, op string, start time.Time, err error) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	p.metrics.RecordProviderOperation(ctx, p.provider, op, status, time.Since(start))
}
