package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inboxpilot/internal/assistant"
)

func newRunCmd() *cobra.Command {
	var inboxFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the inbox and run the workflow once",
		Long: `Fetch the configured number of inbox messages, run one workflow
traversal over them, and print the resulting state as JSON.

With --inbox, messages are read from a JSON file instead of Gmail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var messages []assistant.Message
			if inboxFile != "" {
				messages, err = readInboxFile(inboxFile)
				if err != nil {
					return err
				}
			}

			orch, gmailClient, err := buildWorkflow(ctx, cfg, logger)
			if err != nil {
				return err
			}

			if inboxFile == "" {
				messages, err = gmailClient.FetchInbox(ctx, cfg.Workflow.MaxInbox)
				if err != nil {
					return fmt.Errorf("inbox fetch failed: %w", err)
				}
			}

			result := orch.Run(ctx, assistant.NewState(messages))

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&inboxFile, "inbox", "", "path to a JSON file with inbox messages")

	return cmd
}

func readInboxFile(path string) ([]assistant.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inbox file: %w", err)
	}
	var messages []assistant.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parsing inbox file %s: %w", path, err)
	}
	return messages, nil
}
