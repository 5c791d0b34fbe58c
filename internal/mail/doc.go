// Package mail defines the provider-independent contract used by the poller.
//
// A provider implementation (Gmail, IMAP, or a test double) satisfies Adapter
// with exactly three operations: search for unread messages, fetch one
// message, and mark one message as read. The provider's unread flag is the
// only deduplication mechanism; nothing in this package caches messages.
package mail
