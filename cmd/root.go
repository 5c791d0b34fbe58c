package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// newRootCmd builds the command tree for one invocation.
func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "inboxpoll",
		Short: "Polls a mailbox for unread mail and marks it read",
		Long: `inboxpoll watches a Gmail (or IMAP) mailbox for unread messages, optionally
from a single sender, and marks every message it reports as read.

It can run as:
  - A polling loop that logs each new message (poll, the default)
  - A console chat in which a language model checks mail on request (chat)
  - An MCP (Model Context Protocol) server for AI assistants (serve)

Configuration is read from flags, INBOXPOLL_* environment variables and an
optional YAML file (--config, default ~/.config/inboxpoll/config.yaml).`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.SetVersionTemplate(`{{printf "inboxpoll version %s\n" .Version}}`)
	rootCmd.Version = version
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a YAML config file")
	flags.String("provider", ProviderGmail, "Mail provider: gmail or imap")
	flags.String("token-path", "token.json", "OAuth token file (env GMAIL_TOKEN_PATH)")
	flags.String("credentials-path", "credentials.json", "OAuth client secrets file (env GMAIL_CREDENTIALS_FILE)")
	flags.String("sender", "", "Only consider unread mail from this address (env GMAIL_SENDER)")
	flags.Int("max-results", 100, "Maximum messages handled per poll cycle (0 for no limit)")
	flags.Duration("request-timeout", 0, "Timeout for each Gmail API request or IMAP command (default 10s)")
	flags.String("imap-addr", "", "IMAP server host:port")
	flags.String("imap-username", "", "IMAP user name")
	flags.String("imap-mailbox", "INBOX", "IMAP mailbox to watch")
	flags.Bool("imap-insecure", false, "Connect to the IMAP server without TLS")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(newPollCmd(a))
	rootCmd.AddCommand(newChatCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newAuthCmd(a))
	rootCmd.AddCommand(newCredentialCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd := newRootCmd(newApp())
	rootCmd.SetArgs(withDefaultCommand(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withDefaultCommand runs poll when no subcommand is given, so that
// "inboxpoll --sender a@example.com" polls. Help and version flags still go
// to the root command.
func withDefaultCommand(args []string) []string {
	if len(args) == 0 {
		return []string{"poll"}
	}
	switch args[0] {
	case "-h", "--help", "-v", "--version":
		return args
	}
	if strings.HasPrefix(args[0], "-") {
		return append([]string{"poll"}, args...)
	}
	return args
}
