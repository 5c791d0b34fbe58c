// Package imap adapts an IMAP mailbox to the mail.Adapter interface.
//
// Unread means "without the \Seen flag". Searches use UID SEARCH UNSEEN,
// optionally with a FROM header match; bodies are fetched with BODY.PEEK so
// reading a message does not mark it; marking read is a silent
// UID STORE +FLAGS (\Seen). Message ids are IMAP UIDs in decimal.
//
// Snippets are derived from the first text/plain part, collapsed to a single
// line and cut to 200 characters.
package imap
