package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/inboxpoll/internal/mail"
)

const (
	// DefaultTimeout bounds each Gmail API request.
	DefaultTimeout = 10 * time.Second

	// unreadLabel is the system label Gmail uses for the unread flag.
	unreadLabel = "UNREAD"

	defaultUser = "me"
	pageSize    = 100
)

var _ mail.Adapter = (*Client)(nil)

// Client implements mail.Adapter on top of the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	user    string
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
	user    string
	extra   []option.ClientOption
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithUser sets the mailbox user id. Defaults to "me", the authorized user.
func WithUser(user string) ClientOption {
	return func(c *clientConfig) {
		if user != "" {
			c.user = user
		}
	}
}

// WithAPIOptions passes additional options to the Gmail service, e.g.
// option.WithEndpoint for a local test server.
func WithAPIOptions(opts ...option.ClientOption) ClientOption {
	return func(c *clientConfig) {
		c.extra = append(c.extra, opts...)
	}
}

// NewClient creates a Gmail adapter using an already authorized HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("authorized HTTP client is required")
	}

	cfg := clientConfig{timeout: DefaultTimeout, user: defaultUser}
	for _, opt := range opts {
		opt(&cfg)
	}

	apiOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, cfg.extra...)
	svc, err := gmail.NewService(ctx, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		user:    cfg.user,
		timeout: cfg.timeout,
	}, nil
}

// Name returns the provider name used in logs and metrics.
func (c *Client) Name() string {
	return "gmail"
}

// SearchUnread lists every message matching the query, following pagination.
func (c *Client) SearchUnread(ctx context.Context, q mail.Query) ([]mail.Ref, error) {
	var refs []mail.Ref
	pageToken := ""
	for {
		req := c.svc.Messages.List(c.user).Q(q.Expression()).MaxResults(pageSize)
		if pageToken != "" {
			req.PageToken(pageToken)
		}

		res, err := withTimeout(ctx, c.timeout, func(ctx context.Context) (*gmail.ListMessagesResponse, error) {
			return req.Context(ctx).Do()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range res.Messages {
			refs = append(refs, mail.Ref{ID: m.Id})
		}
		if res.NextPageToken == "" {
			return refs, nil
		}
		pageToken = res.NextPageToken
	}
}

// Fetch retrieves the id and snippet of one message.
func (c *Client) Fetch(ctx context.Context, ref mail.Ref) (mail.Message, error) {
	req := c.svc.Messages.Get(c.user, ref.ID).Format("metadata").Fields("id", "snippet")

	msg, err := withTimeout(ctx, c.timeout, func(ctx context.Context) (*gmail.Message, error) {
		return req.Context(ctx).Do()
	})
	if err != nil {
		return mail.Message{}, fmt.Errorf("failed to get message %s: %w", ref.ID, err)
	}

	return mail.Message{ID: msg.Id, Snippet: msg.Snippet}, nil
}

// MarkRead removes the UNREAD label. A message that no longer exists is
// treated as already read.
func (c *Client) MarkRead(ctx context.Context, ref mail.Ref) error {
	req := c.svc.Messages.Modify(c.user, ref.ID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{unreadLabel},
	})

	_, err := withTimeout(ctx, c.timeout, func(ctx context.Context) (*gmail.Message, error) {
		return req.Context(ctx).Do()
	})
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to mark message %s read: %w", ref.ID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// withTimeout runs call with a context bounded by timeout, if positive.
func withTimeout[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return call(ctx)
}
