package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultScopes are the OAuth scopes requested for the mailbox.
//
// gmail.modify covers reading messages and changing labels, which is all
// the poller needs to clear the UNREAD label. It does not allow sending or
// permanent deletion.
var DefaultScopes = []string{
	gmail.GmailModifyScope,
}
