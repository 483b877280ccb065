package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"inboxpilot/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow as an HTTP service",
		Long: `Start the HTTP service exposing the workflow endpoints and, when a
poll interval is configured, run the inbox sync in the background.

The service drains gracefully on SIGINT and SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orch, gmailClient, err := buildWorkflow(ctx, cfg, logger)
			if err != nil {
				return err
			}

			svc, err := server.New(server.Config{
				Addr:         cfg.Server.Addr,
				PollInterval: cfg.Server.PollInterval.Std(),
				MaxInbox:     cfg.Workflow.MaxInbox,
				SendReplies:  cfg.Server.SendReplies,
			}, server.Deps{
				Runner: orch,
				Inbox:  gmailClient,
				Sender: gmailClient,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			if err := svc.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	return cmd
}
