package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxpoll/internal/google"
)

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and store the token",
		Long: `Run the OAuth consent flow for the client secrets in --credentials-path and
write the resulting token to --token-path, replacing any existing token.

Open the printed link in a browser; the redirect is received on a local
loopback port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg := a.googleConfig(true)
			cfg.Out = cmd.ErrOrStderr()
			if err := google.Login(ctx, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", a.cfg.TokenPath)
			return nil
		},
	}
}
