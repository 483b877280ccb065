package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Server.PollInterval.Std())
	assert.Equal(t, "primary", cfg.Workflow.CalendarID)
	assert.Equal(t, 60*time.Minute, cfg.Workflow.MeetingDuration.Std())
	assert.Equal(t, 5*time.Minute, cfg.Workflow.DebounceWindow.Std())
	assert.Equal(t, "reply-first", cfg.Workflow.Ordering)
	assert.Equal(t, int64(10), cfg.Workflow.MaxInbox)
	assert.Equal(t, "http://localhost:11434", cfg.Oracle.BaseURL)
	assert.Equal(t, "phi3", cfg.Oracle.SummaryModel)
	assert.Equal(t, "llama3", cfg.Oracle.ReplyModel)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  pollInterval: 2m
  sendReplies: true
workflow:
  calendarId: work@example.com
  timeZone: America/Chicago
  meetingDuration: 30m
  workHourStart: 8
  workHourEnd: 18
  ordering: schedule-first
oracle:
  baseUrl: http://ollama.internal:11434
  summaryModel: phi3:mini
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Server.PollInterval.Std())
	assert.True(t, cfg.Server.SendReplies)
	assert.Equal(t, "work@example.com", cfg.Workflow.CalendarID)
	assert.Equal(t, 30*time.Minute, cfg.Workflow.MeetingDuration.Std())
	assert.Equal(t, "schedule-first", cfg.Workflow.Ordering)
	assert.Equal(t, "phi3:mini", cfg.Oracle.SummaryModel)
	// Untouched fields keep their defaults.
	assert.Equal(t, "llama3", cfg.Oracle.ReplyModel)
	assert.Equal(t, "json", cfg.Log.Format)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")

	t.Setenv("INBOXPILOT_ADDR", ":7070")
	t.Setenv("INBOXPILOT_CALENDAR_ID", "team@example.com")
	t.Setenv("OLLAMA_BASE_URL", "http://other:11434")
	t.Setenv("INBOXPILOT_POLL_INTERVAL", "45s")
	t.Setenv("INBOXPILOT_SEND_REPLIES", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "team@example.com", cfg.Workflow.CalendarID)
	assert.Equal(t, "http://other:11434", cfg.Oracle.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Server.PollInterval.Std())
	assert.True(t, cfg.Server.SendReplies)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad ordering",
			yaml:    "workflow:\n  ordering: alphabetical\n",
			wantErr: "ordering",
		},
		{
			name:    "inverted work hours",
			yaml:    "workflow:\n  workHourStart: 18\n  workHourEnd: 9\n",
			wantErr: "work-hour",
		},
		{
			name:    "bad time zone",
			yaml:    "workflow:\n  timeZone: Mars/Olympus\n",
			wantErr: "timeZone",
		},
		{
			name:    "bad duration",
			yaml:    "workflow:\n  meetingDuration: sixty\n",
			wantErr: "invalid duration",
		},
		{
			name:    "zero max inbox",
			yaml:    "workflow:\n  maxInbox: 0\n",
			wantErr: "maxInbox",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config file")
}
