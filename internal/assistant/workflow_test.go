package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxpilot/internal/schedule"
)

// fakeOracle answers by prompt kind: summarization prompts start with
// "Summarize", routing prompts with "Analyze", everything else is a
// reply draft.
type fakeOracle struct {
	summary  string
	decision string
	reply    string

	err      error
	replyErr error

	calls   int
	prompts []string
}

func (f *fakeOracle) Complete(_ context.Context, _ string, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	switch {
	case strings.HasPrefix(prompt, "Summarize"):
		return f.summary, nil
	case strings.HasPrefix(prompt, "Analyze"):
		return f.decision, nil
	default:
		if f.replyErr != nil {
			return "", f.replyErr
		}
		return f.reply, nil
	}
}

type fakeCalendar struct {
	busy    []schedule.BusyInterval
	busyErr error

	link      string
	createErr error

	queried [][2]time.Time
	created []EventSpec
}

func (f *fakeCalendar) BusyIntervals(_ context.Context, _ string, timeMin, timeMax time.Time) ([]schedule.BusyInterval, error) {
	f.queried = append(f.queried, [2]time.Time{timeMin, timeMax})
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ string, spec EventSpec) (string, error) {
	f.created = append(f.created, spec)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.link, nil
}

type fakeInvoices struct {
	err     error
	records []InvoiceRecord
}

func (f *fakeInvoices) Persist(_ context.Context, rec InvoiceRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeMemory struct {
	data    map[string]string
	loadErr error
	saveErr error
	saved   map[string]string
}

func (f *fakeMemory) Load(_ context.Context) (map[string]string, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.data, nil
}

func (f *fakeMemory) Save(_ context.Context, m map[string]string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = make(map[string]string, len(m))
	for k, v := range m {
		f.saved[k] = v
	}
	return nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func newTestOrchestrator(t *testing.T, cfg Config, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o, err := New(cfg, deps)
	require.NoError(t, err)
	return o
}

func TestNewValidation(t *testing.T) {
	cal := &fakeCalendar{}
	orc := &fakeOracle{}

	t.Run("missing oracle", func(t *testing.T) {
		_, err := New(Config{}, Deps{Calendar: cal})
		assert.ErrorContains(t, err, "oracle")
	})

	t.Run("missing calendar", func(t *testing.T) {
		_, err := New(Config{}, Deps{Oracle: orc})
		assert.ErrorContains(t, err, "calendar")
	})

	t.Run("unknown ordering", func(t *testing.T) {
		_, err := New(Config{Ordering: "alphabetical"}, Deps{Oracle: orc, Calendar: cal})
		assert.ErrorContains(t, err, "ordering")
	})

	t.Run("inverted work hours", func(t *testing.T) {
		_, err := New(Config{WorkHourStart: 17, WorkHourEnd: 9}, Deps{Oracle: orc, Calendar: cal})
		assert.ErrorContains(t, err, "work-hour")
	})

	t.Run("defaults applied", func(t *testing.T) {
		o, err := New(Config{}, Deps{Oracle: orc, Calendar: cal})
		require.NoError(t, err)
		assert.Equal(t, "primary", o.cfg.CalendarID)
		assert.Equal(t, DefaultMeetingDuration, o.cfg.MeetingDuration)
		assert.Equal(t, DefaultDebounceWindow, o.cfg.DebounceWindow)
		assert.Equal(t, ReplyFirst, o.cfg.Ordering)
		assert.Equal(t, schedule.DefaultWorkHourStart, o.cfg.WorkHourStart)
		assert.Equal(t, schedule.DefaultWorkHourEnd, o.cfg.WorkHourEnd)
	})
}

func TestRunReplyFlow(t *testing.T) {
	orc := &fakeOracle{
		summary:  "1. Bob <bob@example.com>\nBody: asks about the quarterly report.",
		decision: "reply",
		reply:    "Subject: Re: report\n\nHappy to help.",
	}
	cal := &fakeCalendar{}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)}, Deps{Oracle: orc, Calendar: cal})

	// Out-of-order timestamps: replies must come back oldest first.
	st := o.Run(context.Background(), NewState([]Message{
		{From: "carol@example.com", Subject: "Lunch", Body: "Friday?", Timestamp: "2025-05-02T09:00:00Z"},
		{From: "bob@example.com", Subject: "Report", Body: "Where is it?", Timestamp: "2025-05-01T09:00:00Z"},
	}))

	assert.Contains(t, st.Summary, "quarterly report")
	assert.Equal(t, st.Reasoning, `decided action "reply" based on summary`)

	first := strings.Index(st.Reply, "1. To: bob@example.com")
	second := strings.Index(st.Reply, "2. To: carol@example.com")
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first)
	assert.Contains(t, st.Reply, "Happy to help.")

	// No meeting email, so the scheduling pass records a failure and no
	// event is created.
	assert.Equal(t, "No meeting email found.", st.CalendarEvent)
	assert.Equal(t, ActionCalendarFailed, st.Action)
	assert.Empty(t, cal.created)
	assert.Equal(t, "No invoice processed.", st.BudgetStatus)
}

func TestRunScheduleNoConflict(t *testing.T) {
	loc := chicago(t)
	orc := &fakeOracle{
		summary:  "1. Dana <dana@example.com>\nBody: proposes a meeting.",
		decision: "schedule",
	}
	cal := &fakeCalendar{link: "https://calendar.example/event/42"}
	o := newTestOrchestrator(t, Config{TimeZone: loc}, Deps{Oracle: orc, Calendar: cal})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "dana@example.com", Subject: "Project meeting", Body: "Let's meet May 18, 2025 at 5PM", Timestamp: "2025-05-10T08:00:00Z"},
	}))

	require.Len(t, cal.created, 1)
	want := time.Date(2025, time.May, 18, 17, 0, 0, 0, loc)
	assert.True(t, cal.created[0].Start.Equal(want))
	assert.True(t, cal.created[0].End.Equal(want.Add(time.Hour)))
	assert.Equal(t, "America/Chicago", cal.created[0].TimeZone)

	assert.Equal(t, ActionCalendarUpdated, st.Action)
	assert.Contains(t, st.CalendarEvent, "https://calendar.example/event/42")
	assert.Empty(t, st.Reply)

	// Busy intervals were queried for the UTC day containing the start.
	require.Len(t, cal.queried, 1)
	assert.Equal(t, time.Date(2025, time.May, 18, 0, 0, 0, 0, time.UTC), cal.queried[0][0])
	assert.Equal(t, time.Date(2025, time.May, 19, 0, 0, 0, 0, time.UTC), cal.queried[0][1])
}

func TestRunSuggestThenConfirm(t *testing.T) {
	loc := chicago(t)
	requested := time.Date(2025, time.May, 18, 17, 0, 0, 0, loc)
	orc := &fakeOracle{
		summary:  "1. Dana <dana@example.com>\nBody: proposes a meeting.",
		decision: "schedule",
	}
	cal := &fakeCalendar{
		busy: []schedule.BusyInterval{{Start: requested, End: requested.Add(time.Hour)}},
		link: "https://calendar.example/event/7",
	}
	o := newTestOrchestrator(t, Config{TimeZone: loc}, Deps{Oracle: orc, Calendar: cal})

	inbox := []Message{
		{From: "dana@example.com", Subject: "Weekly meeting", Body: "Let's meet May 18, 2025 at 5PM", Timestamp: "2025-05-10T08:00:00Z"},
	}
	st := o.Run(context.Background(), NewState(inbox))

	assert.Equal(t, ActionSuggestTime, st.Action)
	require.NotNil(t, st.SuggestedTime)
	wantSlot := time.Date(2025, time.May, 18, 9, 0, 0, 0, loc)
	assert.True(t, st.SuggestedTime.Start.Equal(wantSlot))
	assert.True(t, st.SuggestedTime.End.Equal(wantSlot.Add(time.Hour)))
	assert.Equal(t, "America/Chicago", st.SuggestedTime.TimeZone)
	assert.Contains(t, st.CalendarEvent, "Requested slot is busy")
	assert.Empty(t, cal.created)

	// Second pass: the user confirmed the proposal. No oracle calls, the
	// suggested slot is committed as-is.
	callsBefore := orc.calls
	st.Action = ActionConfirmSuggestion
	st = o.Run(context.Background(), st)

	assert.Equal(t, callsBefore, orc.calls)
	require.Len(t, cal.created, 1)
	assert.True(t, cal.created[0].Start.Equal(wantSlot))
	assert.Equal(t, ActionCalendarUpdated, st.Action)
	assert.Contains(t, st.CalendarEvent, "https://calendar.example/event/7")
}

func TestRunConfirmPassRunsBudgetStep(t *testing.T) {
	loc := chicago(t)
	sink := &fakeInvoices{}
	o := newTestOrchestrator(t, Config{TimeZone: loc},
		Deps{Oracle: &fakeOracle{}, Calendar: &fakeCalendar{link: "https://calendar.example/event/9"}, Invoices: sink})

	slot := time.Date(2025, time.May, 18, 9, 0, 0, 0, loc)
	st := NewState([]Message{
		{From: "dana@example.com", Subject: "Weekly meeting", Body: "Let's meet May 18, 2025 at 9AM", Timestamp: "2025-05-10T08:00:00Z"},
	})
	st.Summary = "1. Billing <billing@example.com>\nBody: invoice for $99.00 attached."
	st.Action = ActionConfirmSuggestion
	st.SuggestedTime = &SuggestedTime{Start: slot, End: slot.Add(time.Hour), TimeZone: "America/Chicago"}

	st = o.Run(context.Background(), st)

	// The confirmed slot is committed and the budget step still closes
	// out the pass.
	assert.Contains(t, st.CalendarEvent, "https://calendar.example/event/9")
	require.Len(t, sink.records, 1)
	assert.Equal(t, "99.00", sink.records[0].Amount)
	assert.Contains(t, st.BudgetStatus, "$99.00")
	assert.Equal(t, ActionBudgetUpdated, st.Action)
}

func TestRunNoSlotAvailable(t *testing.T) {
	loc := chicago(t)
	day := time.Date(2025, time.May, 18, 0, 0, 0, 0, loc)
	orc := &fakeOracle{decision: "schedule", summary: "meeting request"}
	cal := &fakeCalendar{
		busy: []schedule.BusyInterval{{Start: day.Add(9 * time.Hour), End: day.Add(18 * time.Hour)}},
	}
	o := newTestOrchestrator(t, Config{TimeZone: loc}, Deps{Oracle: orc, Calendar: cal})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "dana@example.com", Subject: "Meeting", Body: "Let's meet May 18, 2025 at 5PM"},
	}))

	assert.Equal(t, ActionCalendarFailed, st.Action)
	assert.Contains(t, st.CalendarEvent, "No free slots available on 2025-05-18")
	assert.Nil(t, st.SuggestedTime)
	assert.Empty(t, cal.created)
}

func TestRunFreebusyFailure(t *testing.T) {
	orc := &fakeOracle{decision: "schedule", summary: "meeting request"}
	cal := &fakeCalendar{busyErr: errors.New("api quota exceeded")}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)}, Deps{Oracle: orc, Calendar: cal})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "dana@example.com", Subject: "Meeting", Body: "Let's meet May 18, 2025 at 5PM"},
	}))

	assert.Equal(t, ActionCalendarFailed, st.Action)
	assert.Contains(t, st.CalendarEvent, "Could not check calendar availability")
	assert.Contains(t, st.CalendarEvent, "api quota exceeded")
}

func TestRunEventCreationFailure(t *testing.T) {
	orc := &fakeOracle{decision: "schedule", summary: "meeting request"}
	cal := &fakeCalendar{createErr: errors.New("backend unavailable")}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)}, Deps{Oracle: orc, Calendar: cal})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "dana@example.com", Subject: "Meeting", Body: "Let's meet May 18, 2025 at 5PM"},
	}))

	assert.Equal(t, ActionCalendarFailed, st.Action)
	assert.Contains(t, st.CalendarEvent, "Could not create the calendar event")
}

func TestRunDebounce(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)}
	orc := &fakeOracle{summary: "digest", decision: "reply", reply: "ok"}
	mem := &fakeMemory{}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)},
		Deps{Oracle: orc, Calendar: &fakeCalendar{}, Memory: mem, Now: clock.Now})

	inbox := []Message{{From: "bob@example.com", Subject: "Hi", Body: "hello"}}
	st := o.Run(context.Background(), NewState(inbox))
	assert.Equal(t, "digest", st.Summary)
	callsAfterFirst := orc.calls

	// Within the window: skipped, no oracle calls, no downstream steps.
	clock.Advance(2 * time.Minute)
	st = o.Run(context.Background(), NewState(inbox))
	assert.Equal(t, ActionSummarySkipped, st.Action)
	assert.Contains(t, st.Summary, "skipping")
	assert.Equal(t, callsAfterFirst, orc.calls)
	assert.Empty(t, st.Reply)
	assert.Empty(t, st.BudgetStatus)
	// The skipped run is still a terminal state and gets persisted.
	require.NotNil(t, mem.saved)
	assert.Equal(t, string(ActionSummarySkipped), mem.saved["last_action"])

	// Past the window: runs normally again.
	clock.Advance(4 * time.Minute)
	st = o.Run(context.Background(), NewState(inbox))
	assert.Equal(t, "digest", st.Summary)
	assert.Greater(t, orc.calls, callsAfterFirst)
}

func TestRunOracleDown(t *testing.T) {
	orc := &fakeOracle{err: errors.New("connection refused")}
	cal := &fakeCalendar{}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)}, Deps{Oracle: orc, Calendar: cal})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "bob@example.com", Subject: "Hi", Body: "hello"},
	}))

	assert.Contains(t, st.Summary, "Summary unavailable")
	// Routing falls back to the reply default, and the failed draft is
	// recorded as data in the reply slot.
	assert.Contains(t, st.Reasoning, `"reply"`)
	assert.Contains(t, st.Reply, "Could not draft a reply")
	assert.Contains(t, st.Reply, "connection refused")
}

func TestRunEmptyInbox(t *testing.T) {
	orc := &fakeOracle{decision: "reply"}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)}, Deps{Oracle: orc, Calendar: &fakeCalendar{}})

	st := o.Run(context.Background(), NewState(nil))

	assert.Equal(t, "No emails found.", st.Summary)
	assert.Equal(t, "No emails to reply to.", st.Reply)
	assert.Equal(t, "No meeting email found.", st.CalendarEvent)
	assert.Equal(t, "No invoice processed.", st.BudgetStatus)
}

func TestRunBudgetStep(t *testing.T) {
	orc := &fakeOracle{
		summary:  "1. Billing <billing@example.com>\nBody: invoice for $1,250.50 due soon.",
		decision: "reply",
		reply:    "noted",
	}
	sink := &fakeInvoices{}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)},
		Deps{Oracle: orc, Calendar: &fakeCalendar{}, Invoices: sink})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "billing@example.com", Subject: "Invoice", Body: "Please pay $1,250.50"},
	}))

	require.Len(t, sink.records, 1)
	assert.Equal(t, "1,250.50", sink.records[0].Amount)
	assert.NotEmpty(t, sink.records[0].InvoiceID)
	assert.Contains(t, st.BudgetStatus, "$1,250.50")
	assert.Equal(t, ActionBudgetUpdated, st.Action)
}

func TestRunBudgetPersistFailure(t *testing.T) {
	orc := &fakeOracle{summary: "invoice for $10.00", decision: "reply", reply: "noted"}
	sink := &fakeInvoices{err: errors.New("disk full")}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)},
		Deps{Oracle: orc, Calendar: &fakeCalendar{}, Invoices: sink})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "billing@example.com", Subject: "Invoice", Body: "pay up"},
	}))

	assert.Contains(t, st.BudgetStatus, "could not be recorded")
	assert.NotEqual(t, ActionBudgetUpdated, st.Action)
}

func TestRunScheduleFirstOrderingMentionsSuggestion(t *testing.T) {
	loc := chicago(t)
	requested := time.Date(2025, time.May, 18, 17, 0, 0, 0, loc)
	orc := &fakeOracle{
		summary:  "1. Dana <dana@example.com>\nBody: proposes a meeting.",
		decision: "both",
		reply:    "draft",
	}
	cal := &fakeCalendar{
		busy: []schedule.BusyInterval{{Start: requested, End: requested.Add(time.Hour)}},
	}
	o := newTestOrchestrator(t, Config{TimeZone: loc, Ordering: ScheduleFirst},
		Deps{Oracle: orc, Calendar: cal})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "dana@example.com", Subject: "Meeting", Body: "Let's meet May 18, 2025 at 5PM"},
	}))

	require.NotNil(t, st.SuggestedTime)
	var sawAlternative bool
	for _, p := range orc.prompts {
		if strings.HasPrefix(p, "You are a helpful email assistant") &&
			strings.Contains(p, "Offer this alternative") {
			sawAlternative = true
		}
	}
	assert.True(t, sawAlternative, "reply prompt should carry the suggested alternative")
	assert.Contains(t, st.Reply, "draft")
}

func TestRunMemory(t *testing.T) {
	mem := &fakeMemory{data: map[string]string{"preferred_tone": "formal"}}
	orc := &fakeOracle{summary: "digest", decision: "reply", reply: "ok"}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)},
		Deps{Oracle: orc, Calendar: &fakeCalendar{}, Memory: mem})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "bob@example.com", Subject: "Hi", Body: "hello"},
	}))

	assert.Equal(t, "formal", st.Memory["preferred_tone"])
	require.NotNil(t, mem.saved)
	assert.Equal(t, "formal", mem.saved["preferred_tone"])
	assert.NotEmpty(t, mem.saved["last_action"])
}

func TestRunMemoryLoadFailureIsNonFatal(t *testing.T) {
	mem := &fakeMemory{loadErr: errors.New("corrupt file")}
	orc := &fakeOracle{summary: "digest", decision: "reply", reply: "ok"}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)},
		Deps{Oracle: orc, Calendar: &fakeCalendar{}, Memory: mem})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "bob@example.com", Subject: "Hi", Body: "hello"},
	}))

	assert.Equal(t, "digest", st.Summary)
	assert.NotNil(t, mem.saved)
}

func TestRunRewritesISODates(t *testing.T) {
	orc := &fakeOracle{
		summary:  "1. Dana <dana@example.com>\nBody: meeting on 2025-05-18 at 5PM.",
		decision: "reply",
		reply:    "ok",
	}
	o := newTestOrchestrator(t, Config{TimeZone: chicago(t)},
		Deps{Oracle: orc, Calendar: &fakeCalendar{}})

	st := o.Run(context.Background(), NewState([]Message{
		{From: "dana@example.com", Subject: "Meeting", Body: "2025-05-18 5PM"},
	}))

	assert.Contains(t, st.Summary, "May 18, 2025")
	assert.NotContains(t, st.Summary, "2025-05-18")
}
