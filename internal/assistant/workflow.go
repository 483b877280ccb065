package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inboxpilot/internal/logging"
	"inboxpilot/internal/schedule"
)

// Ordering selects the reply-vs-schedule sequencing for decisions that
// trigger both steps. Both orderings are valid; pick one per deployment.
type Ordering string

const (
	// ReplyFirst drafts the reply before the scheduling pass runs.
	ReplyFirst Ordering = "reply-first"
	// ScheduleFirst runs the scheduling pass first so the drafted reply
	// can mention the scheduling outcome (including a suggested slot).
	ScheduleFirst Ordering = "schedule-first"
)

// Default workflow tunables.
const (
	DefaultMeetingDuration = 60 * time.Minute
	DefaultDebounceWindow  = 5 * time.Minute
)

// Config holds the workflow tunables. Zero values are replaced with
// defaults by New.
type Config struct {
	CalendarID      string
	TimeZone        *time.Location
	MeetingDuration time.Duration
	WorkHourStart   int
	WorkHourEnd     int
	DebounceWindow  time.Duration
	Ordering        Ordering

	SummaryModel  string
	DecisionModel string
	ReplyModel    string
}

func (c Config) withDefaults() Config {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.TimeZone == nil {
		c.TimeZone = time.Local
	}
	if c.MeetingDuration <= 0 {
		c.MeetingDuration = DefaultMeetingDuration
	}
	if c.WorkHourStart == 0 && c.WorkHourEnd == 0 {
		c.WorkHourStart = schedule.DefaultWorkHourStart
		c.WorkHourEnd = schedule.DefaultWorkHourEnd
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = DefaultDebounceWindow
	}
	if c.Ordering == "" {
		c.Ordering = ReplyFirst
	}
	if c.SummaryModel == "" {
		c.SummaryModel = "phi3"
	}
	if c.DecisionModel == "" {
		c.DecisionModel = "phi3"
	}
	if c.ReplyModel == "" {
		c.ReplyModel = "llama3"
	}
	return c
}

// Deps are the orchestrator's collaborators. Oracle and Calendar are
// required; the sinks are optional.
type Deps struct {
	Oracle   Oracle
	Calendar Calendar
	Invoices InvoiceSink
	Memory   MemoryStore
	Logger   *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Orchestrator drives one workflow traversal at a time over a
// SharedState. It holds no cross-run state except the summarization
// debounce timestamp.
type Orchestrator struct {
	cfg      Config
	oracle   Oracle
	calendar Calendar
	invoices InvoiceSink
	memory   MemoryStore
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	lastSummaryAt time.Time
}

// New validates the collaborators and returns a ready Orchestrator. A
// nil Oracle or Calendar is a caller contract violation and fails here,
// not mid-run.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Oracle == nil {
		return nil, fmt.Errorf("assistant: oracle collaborator is required")
	}
	if deps.Calendar == nil {
		return nil, fmt.Errorf("assistant: calendar collaborator is required")
	}
	cfg = cfg.withDefaults()
	if cfg.Ordering != ReplyFirst && cfg.Ordering != ScheduleFirst {
		return nil, fmt.Errorf("assistant: unknown ordering %q", cfg.Ordering)
	}
	if cfg.WorkHourStart < 0 || cfg.WorkHourEnd > 24 || cfg.WorkHourStart >= cfg.WorkHourEnd {
		return nil, fmt.Errorf("assistant: invalid work-hour window %d-%d", cfg.WorkHourStart, cfg.WorkHourEnd)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		cfg:      cfg,
		oracle:   deps.Oracle,
		calendar: deps.Calendar,
		invoices: deps.Invoices,
		memory:   deps.Memory,
		logger:   logger,
		now:      now,
	}, nil
}

// Run executes one workflow traversal and returns the final state. Step
// failures are recovered into status text and a *_failed action; Run
// itself never fails.
//
// A state entering with ActionConfirmSuggestion and a stored suggested
// time re-enters the scheduling step directly, committing the previously
// proposed slot. This is the second half of the human-in-the-loop
// confirmation flow.
func (o *Orchestrator) Run(ctx context.Context, st *SharedState) *SharedState {
	if st == nil {
		st = NewState(nil)
	}
	if st.Memory == nil {
		st.Memory = make(map[string]string)
	}

	log := o.logger.With(logging.RunID(uuid.NewString()))
	log.Info("workflow run started",
		slog.Int("inbox_size", len(st.Inbox)),
		logging.Action(string(st.Action)))

	o.loadMemory(ctx, st, log)

	if st.Action == ActionConfirmSuggestion && st.SuggestedTime != nil {
		o.scheduleStep(ctx, st, log)
		o.budgetStep(ctx, st, log)
		o.saveMemory(ctx, st, log)
		log.Info("workflow run finished", logging.Action(string(st.Action)))
		return st
	}

	if skipped := o.summarizeStep(ctx, st, log); skipped {
		o.saveMemory(ctx, st, log)
		log.Info("workflow run finished", logging.Action(string(st.Action)))
		return st
	}

	o.routeStep(ctx, st, log)

	type stepFn func(context.Context, *SharedState, *slog.Logger)
	var steps []stepFn
	switch st.Action {
	case ActionReply, ActionBoth:
		if o.cfg.Ordering == ScheduleFirst {
			steps = []stepFn{o.scheduleStep, o.replyStep}
		} else {
			steps = []stepFn{o.replyStep, o.scheduleStep}
		}
	default: // schedule, suggest_time
		steps = []stepFn{o.scheduleStep}
	}
	for _, step := range steps {
		step(ctx, st, log)
	}

	o.budgetStep(ctx, st, log)
	o.saveMemory(ctx, st, log)

	log.Info("workflow run finished", logging.Action(string(st.Action)))
	return st
}

// summarizeStep produces the inbox digest. Returns true when the run was
// debounced and should short-circuit to Done.
func (o *Orchestrator) summarizeStep(ctx context.Context, st *SharedState, log *slog.Logger) bool {
	log = logging.WithStep(log, "summarize")

	o.mu.Lock()
	last := o.lastSummaryAt
	o.mu.Unlock()

	now := o.now()
	if !last.IsZero() && now.Sub(last) < o.cfg.DebounceWindow {
		st.Summary = fmt.Sprintf("Summarization already ran %s ago; skipping.", now.Sub(last).Truncate(time.Second))
		st.Action = ActionSummarySkipped
		log.Info("summarization debounced", slog.Duration("since_last", now.Sub(last)))
		return true
	}

	st.Action = ActionSummaryCreated
	if len(st.Inbox) == 0 {
		st.Summary = "No emails found."
		log.Info("inbox empty, nothing to summarize")
		return false
	}

	out, err := o.oracle.Complete(ctx, o.cfg.SummaryModel, summaryPrompt(st.Inbox))
	if err != nil {
		oerr := &OracleError{Model: o.cfg.SummaryModel, Err: err}
		st.Summary = fmt.Sprintf("Summary unavailable: %v", oerr)
		log.Warn("summarization failed", logging.Err(oerr))
		return false
	}

	st.Summary = rewriteISODates(out)
	o.mu.Lock()
	o.lastSummaryAt = now
	o.mu.Unlock()
	log.Info("summary created", slog.Int("length", len(st.Summary)))
	return false
}

func (o *Orchestrator) routeStep(ctx context.Context, st *SharedState, log *slog.Logger) {
	log = logging.WithStep(log, "route")

	prompt := fmt.Sprintf(
		"Analyze the following email summary and decide whether to reply, "+
			"schedule a meeting, suggest a different time, or both reply and schedule:\n\n%s\n\n"+
			"Answer with exactly one of: reply, schedule, suggest_time, both.",
		st.Summary)

	decision, err := o.oracle.Complete(ctx, o.cfg.DecisionModel, prompt)
	if err != nil {
		// No usable decision; ParseDecision turns the empty string into
		// the safe default.
		log.Warn("routing oracle unavailable, using default decision",
			logging.Err(&OracleError{Model: o.cfg.DecisionModel, Err: err}))
		decision = ""
	}

	st.Action = ParseDecision(decision)
	st.Reasoning = fmt.Sprintf("decided action %q based on summary", st.Action)
	log.Info("routing decided", logging.Action(string(st.Action)))
}

func (o *Orchestrator) replyStep(ctx context.Context, st *SharedState, log *slog.Logger) {
	log = logging.WithStep(log, "reply")

	inbox := sortedByTimestamp(st.Inbox)
	if len(inbox) == 0 {
		st.Reply = "No emails to reply to."
		return
	}

	replies := make([]string, 0, len(inbox))
	for i, msg := range inbox {
		prompt := replyPrompt(i+1, msg)
		if st.Action == ActionSuggestTime && strings.TrimSpace(st.CalendarEvent) != "" {
			prompt += "\nNote: the originally requested time is unavailable. Offer this alternative instead:\n" +
				st.CalendarEvent + "\n"
		}
		prompt += "\nReply:\n"

		content, err := o.oracle.Complete(ctx, o.cfg.ReplyModel, prompt)
		if err != nil {
			// A failed draft is data, not a reason to abort the batch.
			log.Warn("reply draft failed", slog.Int("message", i+1),
				logging.Err(&OracleError{Model: o.cfg.ReplyModel, Err: err}))
			replies = append(replies, fmt.Sprintf("%d. To: %s\n\nCould not draft a reply: %v", i+1, msg.From, err))
			continue
		}
		replies = append(replies, fmt.Sprintf("%d. To: %s\n\n%s", i+1, msg.From, strings.TrimSpace(content)))
	}

	st.Reply = strings.Join(replies, "\n\n")
	log.Info("replies drafted", slog.Int("count", len(replies)))
}

func (o *Orchestrator) scheduleStep(ctx context.Context, st *SharedState, log *slog.Logger) {
	log = logging.WithStep(log, "schedule")

	if st.Action == ActionConfirmSuggestion && st.SuggestedTime != nil {
		log.Info("committing previously suggested slot")
		o.commitEvent(ctx, st, st.SuggestedTime.Start, st.SuggestedTime.End, log)
		return
	}

	meeting, ok := findMeetingEmail(st.Inbox)
	if !ok {
		st.CalendarEvent = "No meeting email found."
		st.Action = ActionCalendarFailed
		log.Info("no meeting email in inbox")
		return
	}

	start, ok := schedule.ExtractMeetingTime(meeting.Body, o.cfg.TimeZone)
	if !ok {
		st.CalendarEvent = "Could not parse a meeting time from the email."
		st.Action = ActionCalendarFailed
		log.Info("meeting time extraction yielded no result")
		return
	}
	end := start.Add(o.cfg.MeetingDuration)

	// Busy intervals are queried for the whole UTC day containing the
	// requested start.
	u := start.UTC()
	dayStart := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	busy, err := o.calendar.BusyIntervals(ctx, o.cfg.CalendarID, dayStart, dayEnd)
	if err != nil {
		cerr := &CollaboratorError{Op: "query busy intervals", Err: err}
		st.CalendarEvent = fmt.Sprintf("Could not check calendar availability: %v", err)
		st.Action = ActionCalendarFailed
		log.Warn("freebusy query failed", logging.Err(cerr))
		return
	}

	if !schedule.Conflicts(start, end, busy) {
		o.commitEvent(ctx, st, start, end, log)
		return
	}

	slot, ok := schedule.SuggestSlot(start, o.cfg.MeetingDuration, busy, o.cfg.WorkHourStart, o.cfg.WorkHourEnd)
	if !ok {
		st.CalendarEvent = fmt.Sprintf("No free slots available on %s.", start.Format("2006-01-02"))
		st.Action = ActionCalendarFailed
		log.Warn("slot search exhausted", logging.Err(ErrNoSlotAvailable))
		return
	}

	st.SuggestedTime = &SuggestedTime{
		Start:    slot.Start,
		End:      slot.End,
		TimeZone: o.cfg.TimeZone.String(),
	}
	st.Action = ActionSuggestTime
	st.CalendarEvent = fmt.Sprintf("Requested slot is busy. How about %s?",
		slot.Start.Format("2006-01-02 3:04 PM MST"))
	log.Info("conflict found, alternative suggested",
		slog.Time("requested", start), slog.Time("suggested", slot.Start))
}

func (o *Orchestrator) commitEvent(ctx context.Context, st *SharedState, start, end time.Time, log *slog.Logger) {
	link, err := o.calendar.CreateEvent(ctx, o.cfg.CalendarID, EventSpec{
		Summary:     "Scheduled Meeting",
		Description: "Scheduled automatically from an inbox meeting request.",
		Start:       start,
		End:         end,
		TimeZone:    o.cfg.TimeZone.String(),
	})
	if err != nil {
		cerr := &CollaboratorError{Op: "create event", Err: err}
		st.CalendarEvent = fmt.Sprintf("Could not create the calendar event: %v", err)
		st.Action = ActionCalendarFailed
		log.Warn("event creation failed", logging.Err(cerr))
		return
	}
	if link == "" {
		link = "link unavailable"
	}
	st.CalendarEvent = "Meeting scheduled: " + link
	st.Action = ActionCalendarUpdated
	log.Info("event created", slog.Time("start", start))
}

var amountRe = regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d{2})?)`)

func (o *Orchestrator) budgetStep(ctx context.Context, st *SharedState, log *slog.Logger) {
	log = logging.WithStep(log, "budget")

	if o.invoices == nil || !strings.Contains(strings.ToLower(st.Summary), "invoice") {
		st.BudgetStatus = "No invoice processed."
		return
	}

	rec := InvoiceRecord{InvoiceID: uuid.NewString()}
	if m := amountRe.FindStringSubmatch(st.Summary); m != nil {
		rec.Amount = m[1]
	}

	if err := o.invoices.Persist(ctx, rec); err != nil {
		st.BudgetStatus = fmt.Sprintf("Invoice detected but could not be recorded: %v", err)
		log.Warn("invoice persistence failed", logging.Err(&CollaboratorError{Op: "persist invoice", Err: err}))
		return
	}

	if rec.Amount != "" {
		st.BudgetStatus = fmt.Sprintf("Invoice of $%s processed and recorded.", rec.Amount)
	} else {
		st.BudgetStatus = "Invoice processed and recorded."
	}
	st.Action = ActionBudgetUpdated
	log.Info("invoice recorded", slog.String("amount", rec.Amount))
}

func (o *Orchestrator) loadMemory(ctx context.Context, st *SharedState, log *slog.Logger) {
	if o.memory == nil {
		return
	}
	m, err := o.memory.Load(ctx)
	if err != nil {
		log.Warn("memory load failed", logging.Err(err))
		return
	}
	// Values already present on the state win over stored ones.
	for k, v := range m {
		if _, exists := st.Memory[k]; !exists {
			st.Memory[k] = v
		}
	}
}

func (o *Orchestrator) saveMemory(ctx context.Context, st *SharedState, log *slog.Logger) {
	if o.memory == nil {
		return
	}
	st.Memory["last_action"] = string(st.Action)
	if err := o.memory.Save(ctx, st.Memory); err != nil {
		log.Warn("memory save failed", logging.Err(err))
	}
}

func summaryPrompt(inbox []Message) string {
	var b strings.Builder
	b.WriteString("Summarize each of the following emails clearly, correcting any typos " +
		"in the message body but never changing the sender's email address. " +
		"Output each summary as a numbered list entry in the form:\n\n" +
		"Person Name <exact_email_address>\nBody: summarized content.\n\nBegin below:\n\n")
	for i, msg := range inbox {
		fmt.Fprintf(&b, "%d.\nFrom: %s\nSubject: %s\nBody: %s\n\n", i+1, msg.From, msg.Subject, msg.Body)
	}
	return b.String()
}

func replyPrompt(n int, msg Message) string {
	return fmt.Sprintf(
		"You are a helpful email assistant. Based on the following email, write a clear, "+
			"professional, and kind reply with a subject line, a greeting, short bullet "+
			"points where they help clarity, and a polite closing.\n\n"+
			"Email #%d:\nFrom: %s\nSubject: %s\nBody: %s\n",
		n, msg.From, msg.Subject, strings.TrimSpace(msg.Body))
}

func findMeetingEmail(inbox []Message) (Message, bool) {
	for _, msg := range inbox {
		if strings.Contains(strings.ToLower(msg.Subject), "meeting") {
			return msg, true
		}
	}
	return Message{}, false
}

// sortedByTimestamp returns the inbox ordered oldest-first. Messages
// without a parseable RFC 3339 timestamp keep their relative position at
// the front.
func sortedByTimestamp(inbox []Message) []Message {
	out := make([]Message, len(inbox))
	copy(out, inbox)
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339, out[i].Timestamp)
		tj, _ := time.Parse(time.RFC3339, out[j].Timestamp)
		return ti.Before(tj)
	})
	return out
}

var isoDateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)

// rewriteISODates replaces bare yyyy-mm-dd dates in oracle output with a
// friendlier "January 2, 2006" form. Unparseable matches are left alone.
func rewriteISODates(s string) string {
	return isoDateRe.ReplaceAllStringFunc(s, func(m string) string {
		t, err := time.Parse("2006-01-02", m)
		if err != nil {
			return m
		}
		return t.Format("January 2, 2006")
	})
}
