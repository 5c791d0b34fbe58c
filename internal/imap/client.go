package imap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/mail"
)

// Defaults applied by New.
const (
	DefaultMailbox        = "INBOX"
	DefaultDialTimeout    = 10 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// ErrCommandTimeout is returned when the server does not answer a command
// within Config.CommandTimeout. The connection is dropped.
var ErrCommandTimeout = errors.New("imap command timed out")

var _ mail.Adapter = (*Client)(nil)

// Config holds the connection settings for one mailbox.
type Config struct {
	// Addr is host:port, e.g. "imap.example.com:993".
	Addr     string
	Username string
	Password string

	// Mailbox to watch. Defaults to INBOX.
	Mailbox string

	// Insecure connects without TLS. Local test servers only.
	Insecure bool

	DialTimeout time.Duration

	// CommandTimeout bounds each command, including login and mailbox
	// selection on a new connection.
	CommandTimeout time.Duration
}

// Validate checks that the settings are complete.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("imap address is required")
	}
	if c.Username == "" {
		return errors.New("imap username is required")
	}
	if c.Password == "" {
		return errors.New("imap password is required")
	}
	return nil
}

// Client implements mail.Adapter over a single IMAP connection. The
// connection is opened on first use and reopened after a failed command.
// IMAP connections do not support concurrent commands, so calls are
// serialized.
type Client struct {
	cfg    Config
	logger logging.Logger

	mu   sync.Mutex
	sess session
	dial func(Config) (session, error)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func withDialer(dial func(Config) (session, error)) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

// New creates an IMAP adapter. No connection is made until the first call.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: logging.Component("imap"),
		dial:   dialSession,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the provider name used in logs and metrics.
func (c *Client) Name() string {
	return "imap"
}

// SearchUnread returns the UIDs of messages without the \Seen flag.
func (c *Client) SearchUnread(ctx context.Context, q mail.Query) ([]mail.Ref, error) {
	var uids []imap.UID
	err := c.run(ctx, func(s session) error {
		var err error
		uids, err = s.UIDSearch(searchCriteria(q))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	refs := make([]mail.Ref, 0, len(uids))
	for _, uid := range uids {
		refs = append(refs, mail.Ref{ID: strconv.FormatUint(uint64(uid), 10)})
	}
	return refs, nil
}

// Fetch reads one message without marking it seen and derives a snippet
// from its text.
func (c *Client) Fetch(ctx context.Context, ref mail.Ref) (mail.Message, error) {
	uid, err := parseUID(ref)
	if err != nil {
		return mail.Message{}, err
	}

	var body []byte
	err = c.run(ctx, func(s session) error {
		var err error
		body, err = s.FetchBody(uid)
		return err
	})
	if err != nil {
		return mail.Message{}, fmt.Errorf("imap fetch %s: %w", ref.ID, err)
	}

	return mail.Message{ID: ref.ID, Snippet: Snippet(body)}, nil
}

// MarkRead adds the \Seen flag. Servers accept a STORE on a UID that no
// longer exists, so a vanished message is not an error.
func (c *Client) MarkRead(ctx context.Context, ref mail.Ref) error {
	uid, err := parseUID(ref)
	if err != nil {
		return err
	}

	err = c.run(ctx, func(s session) error {
		return s.AddFlags(uid, imap.FlagSeen)
	})
	if err != nil {
		return fmt.Errorf("imap store %s: %w", ref.ID, err)
	}
	return nil
}

// Close logs out and drops the connection, if any. A server that does not
// answer the LOGOUT within the command timeout is disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return nil
	}
	err := c.await(context.Background(), func(s session) error { return s.Close() })
	c.sess = nil
	return err
}

// run executes fn on the shared session, connecting first if needed. A
// failed command drops the session so the next call starts fresh.
func (c *Client) run(ctx context.Context, fn func(session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		s, err := c.dial(c.cfg)
		if err != nil {
			return err
		}
		c.logger.Debug("imap session opened", "addr", c.cfg.Addr, "mailbox", c.cfg.Mailbox)
		c.sess = s
	}

	if err := c.await(ctx, fn); err != nil {
		if c.sess != nil && !errors.Is(err, errNoSuchMessage) {
			// The connection may be broken; a LOGOUT could hang.
			_ = c.sess.Abort()
			c.sess = nil
		}
		return err
	}
	return nil
}

// await runs fn on the current session and waits for it, the command
// timeout or ctx, whichever comes first. On timeout or cancellation the
// connection is torn down without a LOGOUT, which unblocks fn, and the
// session is dropped. Callers hold c.mu.
func (c *Client) await(ctx context.Context, fn func(session) error) error {
	sess := c.sess
	done := make(chan error, 1)
	go func() { done <- fn(sess) }()

	timer := time.NewTimer(c.cfg.CommandTimeout)
	defer timer.Stop()

	var err error
	select {
	case err := <-done:
		return err
	case <-timer.C:
		err = fmt.Errorf("%w after %s", ErrCommandTimeout, c.cfg.CommandTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.logger.Warn("aborting imap session", "addr", c.cfg.Addr, logging.Err(err))
	_ = sess.Abort()
	<-done
	c.sess = nil
	return err
}

func searchCriteria(q mail.Query) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	if sender := strings.TrimSpace(q.Sender); sender != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{{Key: "From", Value: sender}}
	}
	return criteria
}

func parseUID(ref mail.Ref) (imap.UID, error) {
	n, err := strconv.ParseUint(ref.ID, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid imap uid %q", ref.ID)
	}
	return imap.UID(n), nil
}
