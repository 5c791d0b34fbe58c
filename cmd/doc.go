// Package cmd implements the command-line interface for inboxpoll.
//
// This package provides the following commands:
//   - poll: Poll for unread mail and log each new message (default)
//   - chat: Console chat with a model that can call the gmail_poll tool
//   - serve: Start the MCP server exposing the polling tools
//   - auth: Run the OAuth consent flow and store the token
//   - credential: Manage secrets in the system keyring
//   - version: Display version information
//
// Configuration is resolved once per invocation with viper, in increasing
// precedence: defaults, the YAML config file, INBOXPOLL_* environment
// variables (plus the legacy GMAIL_TOKEN_PATH, GMAIL_CREDENTIALS_FILE,
// GMAIL_SENDER and OPENAI_API_KEY) and flags.
package cmd
