package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxpoll/internal/logging"
	"github.com/teemow/inboxpoll/internal/poller"
	"github.com/teemow/inboxpoll/internal/server"
)

func newPollCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll for unread mail and log each new message",
		Long: `Poll the mailbox for unread messages every --interval, log one line per new
message and mark it read. Runs until interrupted.

Without a cached OAuth token the browser consent flow starts first, unless
--interactive=false is given, in which case the command fails.

poll is also run when inboxpoll is started without a command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runPoll(ctx, a)
		},
	}

	cmd.Flags().Duration("interval", poller.DefaultInterval, "Wait between poll cycles")
	cmd.Flags().Bool("interactive", true, "Allow the browser consent flow when no token is cached")
	addMetricsFlags(cmd)

	return cmd
}

func runPoll(ctx context.Context, a *app) error {
	provider, err := a.newInstrumentation(ctx, "poll")
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	p, closeAdapter, err := a.newPoller(ctx, a.cfg.Interactive, provider.Metrics())
	if err != nil {
		return err
	}
	defer func() { _ = closeAdapter() }()

	health := server.NewHealthChecker(nil)
	stopMetrics, err := a.startMetricsServer(provider, health)
	if err != nil {
		return err
	}
	defer stopMetrics()

	agent, err := poller.NewAgent(health.Observe(p), a.cfg.Sender, a.cfg.Interval,
		poller.WithAgentLogger(logging.NewSlogAdapter(logging.WithComponent(a.logger, "agent"))))
	if err != nil {
		return err
	}

	err = agent.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("polling stopped: %w", err)
}
