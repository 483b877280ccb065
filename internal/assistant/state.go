package assistant

import (
	"context"
	"time"

	"inboxpilot/internal/schedule"
)

// Action is a routing decision within the workflow. The set of values is
// closed; ParseDecision coerces anything else to ActionReply.
type Action string

const (
	ActionReply             Action = "reply"
	ActionSchedule          Action = "schedule"
	ActionSuggestTime       Action = "suggest_time"
	ActionBoth              Action = "both"
	ActionCalendarUpdated   Action = "calendar_updated"
	ActionCalendarFailed    Action = "calendar_failed"
	ActionSummaryCreated    Action = "summary_created"
	ActionSummarySkipped    Action = "summary_skipped"
	ActionBudgetUpdated     Action = "budget_updated"
	ActionConfirmSuggestion Action = "confirm_suggestion"
)

// Message is one inbox item. Body is expected to be already decoded by
// the mail collaborator; the workflow never re-attempts decoding.
type Message struct {
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SuggestedTime is an alternative meeting slot proposed when the
// requested time conflicts with the calendar.
type SuggestedTime struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	TimeZone string    `json:"timeZone"`
}

// SharedState is the single mutable record threaded through one workflow
// run. Each step owns the state for its turn and hands it off
// self-consistent; there is never more than one writer.
type SharedState struct {
	Inbox         []Message         `json:"inbox"`
	Summary       string            `json:"summary"`
	Action        Action            `json:"action"`
	Reply         string            `json:"reply"`
	CalendarEvent string            `json:"calendar_event"`
	SuggestedTime *SuggestedTime    `json:"suggested_time,omitempty"`
	BudgetStatus  string            `json:"budget_status"`
	Reasoning     string            `json:"reasoning"`
	Memory        map[string]string `json:"memory"`
}

// NewState creates a fresh SharedState for one inbox batch.
func NewState(inbox []Message) *SharedState {
	return &SharedState{
		Inbox:  inbox,
		Memory: make(map[string]string),
	}
}

// EventSpec describes a calendar event to create.
type EventSpec struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// InvoiceRecord is one detected invoice, persisted by the invoice sink.
type InvoiceRecord struct {
	InvoiceID string
	Amount    string
	DueDate   string
}

// Oracle is the language-model collaborator. Output is free text; the
// workflow treats it as untrusted and absorbs all of its non-determinism
// in ParseDecision.
type Oracle interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Calendar is the scheduling collaborator, treated as a black box that
// returns busy intervals and creates events.
type Calendar interface {
	BusyIntervals(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]schedule.BusyInterval, error)
	CreateEvent(ctx context.Context, calendarID string, spec EventSpec) (link string, err error)
}

// InboxSource retrieves inbox items. An empty result is the failure
// mode; implementations should not surface transport details to the
// workflow.
type InboxSource interface {
	FetchInbox(ctx context.Context, maxResults int64) ([]Message, error)
}

// InvoiceSink persists detected invoices. Fire-and-forget from the
// workflow's perspective.
type InvoiceSink interface {
	Persist(ctx context.Context, rec InvoiceRecord) error
}

// MemoryStore backs the cross-run memory mapping. The workflow only
// touches it through an explicit load at the start and save at the end
// of a run.
type MemoryStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, m map[string]string) error
}
