// Package gmail_tools exposes mailbox polling as MCP tools.
//
//   - gmail_poll: one poll cycle, optionally filtered by sender. The result is
//     a JSON array of {"id", "snippet"} objects.
//   - gmail_poll_senders: one poll cycle per sender, grouped by sender.
//
// Polling marks the returned messages read, so calling a tool twice does not
// return the same messages. Tools are wrapped with common.InstrumentedToolHandler
// for tracing and metrics.
package gmail_tools
