// Package resources provides read-only MCP resources.
//
// The status resource (inboxpoll://status) reports how many poll cycles the
// server has run for its clients, how many messages they returned and when
// the last one finished. Clients can read it to tell an empty inbox from a
// server that has not polled yet.
package resources
