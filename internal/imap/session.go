package imap

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// errNoSuchMessage is returned by a session when a UID no longer exists.
var errNoSuchMessage = errors.New("no such message")

// session is the narrow set of IMAP commands the adapter issues against a
// selected mailbox.
type session interface {
	UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error)
	FetchBody(uid imap.UID) ([]byte, error)
	AddFlags(uid imap.UID, flags ...imap.Flag) error
	// Close logs out and closes the connection.
	Close() error
	// Abort closes the connection without talking to the server. Commands
	// in flight return with an error.
	Abort() error
}

// bodySection is the whole message, fetched without setting \Seen.
var bodySection = &imap.FetchItemBodySection{Peek: true}

// dialSession connects, authenticates and selects the configured mailbox.
// The greeting, login and select must complete within CommandTimeout.
func dialSession(cfg Config) (session, error) {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if cfg.Insecure {
		conn, err = dialer.Dial("tcp", cfg.Addr)
	} else {
		conn, err = tls.DialWithDialer(dialer, "tcp", cfg.Addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", cfg.Addr, err)
	}

	_ = conn.SetDeadline(time.Now().Add(cfg.CommandTimeout))
	c := imapclient.New(conn, nil)

	if err := c.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap auth: %w", err)
	}

	if _, err := c.Select(cfg.Mailbox, nil).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap select %s: %w", cfg.Mailbox, err)
	}

	// Later commands are bounded by Client.await; an idle session must not
	// expire between poll cycles.
	_ = conn.SetDeadline(time.Time{})

	return &clientSession{Client: c}, nil
}

type clientSession struct{ *imapclient.Client }

func (s *clientSession) UIDSearch(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	data, err := s.Client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, err
	}
	return data.AllUIDs(), nil
}

func (s *clientSession) FetchBody(uid imap.UID) ([]byte, error) {
	bufs, err := s.Client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}).Collect()
	if err != nil {
		return nil, err
	}
	if len(bufs) == 0 {
		return nil, errNoSuchMessage
	}
	return bufs[0].FindBodySection(bodySection), nil
}

func (s *clientSession) AddFlags(uid imap.UID, flags ...imap.Flag) error {
	return s.Client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  flags,
	}, nil).Close()
}

func (s *clientSession) Close() error {
	_ = s.Client.Logout().Wait()
	return s.Client.Close()
}

func (s *clientSession) Abort() error {
	return s.Client.Close()
}
