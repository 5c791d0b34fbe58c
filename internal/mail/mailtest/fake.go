// Package mailtest provides an in-memory mail.Adapter for tests.
package mailtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/teemow/inboxpoll/internal/mail"
)

// ErrNotFound is returned by Fetch for an unknown id.
var ErrNotFound = errors.New("message not found")

// Entry is one message held by the fake mailbox.
type Entry struct {
	ID      string
	From    string
	Snippet string
	Read    bool
}

// Fake is a mailbox that honours the unread flag the way a real provider
// does: SearchUnread only returns entries that have not been marked read.
// It records every call for later assertions.
type Fake struct {
	mu      sync.Mutex
	entries []Entry

	// SearchErr, when set, is returned by every SearchUnread call.
	SearchErr error
	// FetchErr and MarkErr inject per-id failures.
	FetchErr map[string]error
	MarkErr  map[string]error

	queries []mail.Query
	fetched []string
	marked  []string
}

// NewFake returns a mailbox holding entries in search order.
func NewFake(entries ...Entry) *Fake {
	return &Fake{
		entries:  append([]Entry(nil), entries...),
		FetchErr: map[string]error{},
		MarkErr:  map[string]error{},
	}
}

// Name implements the provider name hook used in logs and metrics.
func (f *Fake) Name() string { return "fake" }

// Add appends a message to the mailbox.
func (f *Fake) Add(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *Fake) SearchUnread(_ context.Context, q mail.Query) ([]mail.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, q)
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}

	sender := strings.TrimSpace(q.Sender)
	var refs []mail.Ref
	for _, e := range f.entries {
		if e.Read {
			continue
		}
		if sender != "" && !strings.EqualFold(e.From, sender) {
			continue
		}
		refs = append(refs, mail.Ref{ID: e.ID})
	}
	return refs, nil
}

func (f *Fake) Fetch(_ context.Context, ref mail.Ref) (mail.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetched = append(f.fetched, ref.ID)
	if err := f.FetchErr[ref.ID]; err != nil {
		return mail.Message{}, err
	}
	for _, e := range f.entries {
		if e.ID == ref.ID {
			return mail.Message{ID: e.ID, Snippet: e.Snippet}, nil
		}
	}
	return mail.Message{}, ErrNotFound
}

func (f *Fake) MarkRead(_ context.Context, ref mail.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.marked = append(f.marked, ref.ID)
	if err := f.MarkErr[ref.ID]; err != nil {
		return err
	}
	for i := range f.entries {
		if f.entries[i].ID == ref.ID {
			f.entries[i].Read = true
		}
	}
	return nil
}

// Queries returns the queries passed to SearchUnread, in call order.
func (f *Fake) Queries() []mail.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Query(nil), f.queries...)
}

// Fetched returns the ids passed to Fetch, in call order.
func (f *Fake) Fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// Marked returns the ids passed to MarkRead, in call order.
func (f *Fake) Marked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.marked...)
}

// Unread returns the ids still flagged unread.
func (f *Fake) Unread() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for _, e := range f.entries {
		if !e.Read {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
