// Package logging provides structured logging utilities for inboxpoll.
//
// All logging goes through the standard library's slog package. This package
// adds process-wide setup (text or JSON output, level parsing), attribute
// constructors with consistent key names, and a narrow Logger interface that
// the poller and agents accept so tests can capture or discard output.
//
// # Usage Patterns
//
// Configure the default logger once at startup:
//
//	logger, err := logging.Setup(os.Stderr, "info", "text")
//
// Log with standard attributes:
//
//	log := logging.Component("poller")
//	log.Info("new email", logging.MessageID(m.ID), logging.Snippet(m.Snippet))
//
// # Security Considerations
//
// Sender addresses are hashed by logging.Sender so log lines can be correlated
// without exposing the address. Tokens and API keys are never logged; use
// SanitizeToken when a length indicator is useful.
package logging
