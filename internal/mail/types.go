package mail

import (
	"context"
	"strings"
)

// Message is one retrieved mail item. Values are never mutated after the
// poller constructs them.
type Message struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
}

// Ref is an opaque reference to a message returned by a search.
type Ref struct {
	ID string
}

// Query restricts a search for unread messages.
type Query struct {
	// Sender limits the search to messages whose From header matches this
	// address exactly. Empty means all unread messages qualify.
	Sender string
}

// Expression renders the query as a Gmail search expression.
func (q Query) Expression() string {
	sender := strings.TrimSpace(q.Sender)
	if sender == "" {
		return "is:unread"
	}
	return "from:" + sender + " is:unread"
}

// Adapter is the capability set the poller needs from a mail provider.
type Adapter interface {
	// SearchUnread returns references to messages that are unread at call
	// time, in provider order.
	SearchUnread(ctx context.Context, q Query) ([]Ref, error)

	// Fetch retrieves the id and snippet for one reference.
	Fetch(ctx context.Context, ref Ref) (Message, error)

	// MarkRead clears the unread flag on one message. Implementations treat
	// an already-read or missing message as success; only transport failures
	// are returned.
	MarkRead(ctx context.Context, ref Ref) error
}
