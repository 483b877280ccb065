package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"inboxpilot/internal/assistant"
	"inboxpilot/internal/calendar"
	"inboxpilot/internal/config"
	"inboxpilot/internal/gmail"
	"inboxpilot/internal/invoice"
	"inboxpilot/internal/logging"
	"inboxpilot/internal/memory"
	"inboxpilot/internal/oracle"
)

// buildWorkflow wires the configured collaborators into an
// orchestrator, returning the Gmail client alongside so callers can
// fetch the inbox and send replies.
func buildWorkflow(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*assistant.Orchestrator, *gmail.Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	gmailClient, err := gmail.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gmail client: %w", err)
	}
	calendarClient, err := calendar.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Calendar client: %w", err)
	}

	oracleClient := oracle.New(oracle.Config{
		BaseURL: cfg.Oracle.BaseURL,
		Timeout: cfg.Oracle.Timeout.Std(),
		Logger:  logger,
	})
	if err := oracleClient.Healthy(ctx); err != nil {
		// Not fatal: the workflow degrades to status text when the
		// oracle is unreachable.
		logger.Warn("ollama health check failed",
			slog.String("base_url", cfg.Oracle.BaseURL), logging.Err(err))
	}

	orch, err := assistant.New(assistant.Config{
		CalendarID:      cfg.Workflow.CalendarID,
		TimeZone:        loc,
		MeetingDuration: cfg.Workflow.MeetingDuration.Std(),
		WorkHourStart:   cfg.Workflow.WorkHourStart,
		WorkHourEnd:     cfg.Workflow.WorkHourEnd,
		DebounceWindow:  cfg.Workflow.DebounceWindow.Std(),
		Ordering:        assistant.Ordering(cfg.Workflow.Ordering),
		SummaryModel:    cfg.Oracle.SummaryModel,
		DecisionModel:   cfg.Oracle.DecisionModel,
		ReplyModel:      cfg.Oracle.ReplyModel,
	}, assistant.Deps{
		Oracle:   oracleClient,
		Calendar: calendarClient,
		Invoices: invoice.NewStore(cfg.Storage.InvoicePath),
		Memory:   memory.NewStore(cfg.Storage.MemoryPath),
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return orch, gmailClient, nil
}
