package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inboxpilot/internal/google"
)

func newAuthCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Gmail and Google Calendar",
		Long: `Run the one-time OAuth flow. The command prints an authorization URL,
waits for the code on stdin, and caches the resulting token on disk.

GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set in the
environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if google.HasToken() && !force {
				fmt.Fprintln(cmd.OutOrStdout(), "Already authorized. Use --force to re-authorize.")
				return nil
			}

			url, err := google.AuthURL()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Visit the following URL to authorize inboxpilot:\n\n%s\n\nEnter the authorization code: ", url)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				return fmt.Errorf("no authorization code provided")
			}
			code := strings.TrimSpace(scanner.Text())
			if code == "" {
				return fmt.Errorf("no authorization code provided")
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := google.SaveToken(ctx, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Authorization complete.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-run the flow even when a token exists")
	return cmd
}
