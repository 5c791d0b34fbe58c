// Package gmail adapts the Gmail API to the mail.Adapter interface.
//
// The client needs an HTTP client that already carries OAuth credentials
// (see the google package). It uses three Gmail calls:
//   - users.messages.list with a "q" search expression, following pagination
//   - users.messages.get in metadata format, for the id and snippet
//   - users.messages.modify removing the UNREAD label
//
// Every request is bounded by a timeout (DefaultTimeout unless overridden).
// Marking a message that no longer exists as read is not an error.
//
// Example usage:
//
//	httpClient, err := google.Authorize(ctx, google.Config{
//	    TokenPath:       "token.json",
//	    CredentialsPath: "credentials.json",
//	})
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, httpClient)
//	if err != nil {
//	    return err
//	}
//	messages := poller.New(client).Poll(ctx, "")
package gmail
