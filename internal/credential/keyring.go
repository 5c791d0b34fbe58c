// Package credential stores secrets in the operating system keyring.
//
// Secrets that should not live in a config file or the environment (the
// IMAP password, the OpenAI API key) can be saved once with
// "inboxpoll credential set <key>" and are then looked up at start.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "inboxpoll"

// Well-known keys.
const (
	KeyIMAPPassword = "imap-password"
	KeyOpenAIAPIKey = "openai-api-key"
)

// Keys lists the keys the CLI accepts.
var Keys = []string{KeyIMAPPassword, KeyOpenAIAPIKey}

// ErrNotFound is returned when no secret is stored under a key.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets in a keyring.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the system keyring, falling back to an encrypted file under
// ~/.config/inboxpoll/credentials when no native backend is available.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/inboxpoll/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("inboxpoll-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// Get retrieves a secret by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret, replacing any previous value.
func (s *Store) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "inboxpoll " + key,
		Description: "inboxpoll secret",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Resolve returns value when set, otherwise the secret stored under key.
// A missing secret yields "" and no error.
func (s *Store) Resolve(value, key string) (string, error) {
	if value != "" {
		return value, nil
	}
	secret, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return secret, err
}

// ValidateKey rejects keys the CLI does not know about.
func ValidateKey(key string) error {
	for _, k := range Keys {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("unknown credential %q (known: %s)", key, strings.Join(Keys, ", "))
}
