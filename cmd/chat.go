package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxpoll/internal/chat"
)

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an assistant that can check your mail",
		Long: `Start a console conversation with a language model that can call the
gmail_poll tool to check for unread mail. Type 'exit' or 'quit' to leave.

The OpenAI API key is read from OPENAI_API_KEY, the openai.api_key config key,
or the keyring entry "openai-api-key".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runChat(ctx, a, cmd)
		},
	}

	cmd.Flags().String("model", chat.DefaultModel, "Chat model")
	cmd.Flags().String("openai-base-url", "", "Base URL of an OpenAI compatible API")
	cmd.Flags().Bool("interactive", true, "Allow the browser consent flow when no token is cached")

	return cmd
}

func runChat(ctx context.Context, a *app, cmd *cobra.Command) error {
	completer, err := a.newCompleter()
	if err != nil {
		return err
	}

	provider, err := a.newInstrumentation(ctx, "chat")
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(context.WithoutCancel(ctx)) }()

	p, closeAdapter, err := a.newPoller(ctx, a.cfg.Interactive, provider.Metrics())
	if err != nil {
		return err
	}
	defer func() { _ = closeAdapter() }()

	// The default chat logger carries the session id.
	agent := chat.New(completer, p, chat.WithMetrics(provider.Metrics()))
	a.logger.Debug("chat session started", "session", agent.Session())

	err = agent.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
