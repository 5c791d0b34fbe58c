// Package google obtains an authorized HTTP client for the Gmail API.
//
// Authorize loads an OAuth client secrets file (credentials.json) and a
// cached token (token.json). An expired token is refreshed; a missing one
// triggers the browser consent flow when running interactively. Refreshed
// tokens are written back to the token file so the next start does not need
// to refresh again.
//
// Any failure to produce a usable token is reported as ErrCannotAuthorize.
// Retrying without user action cannot succeed, so callers should stop
// instead of looping.
//
// The token file accepts both the golang.org/x/oauth2 JSON layout and the
// authorized-user layout written by Google's Python client libraries.
package google
