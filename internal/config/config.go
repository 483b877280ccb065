package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP service surface.
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	PollInterval Duration `yaml:"pollInterval"` // 0 disables the background poll
	SendReplies  bool     `yaml:"sendReplies"`
}

// WorkflowConfig configures the workflow semantics.
type WorkflowConfig struct {
	CalendarID      string   `yaml:"calendarId"`
	TimeZone        string   `yaml:"timeZone"`
	MeetingDuration Duration `yaml:"meetingDuration"`
	WorkHourStart   int      `yaml:"workHourStart"`
	WorkHourEnd     int      `yaml:"workHourEnd"`
	DebounceWindow  Duration `yaml:"debounceWindow"`
	Ordering        string   `yaml:"ordering"` // "reply-first" or "schedule-first"
	MaxInbox        int64    `yaml:"maxInbox"`
}

// OracleConfig configures the Ollama connection and model selection.
type OracleConfig struct {
	BaseURL       string   `yaml:"baseUrl"`
	Timeout       Duration `yaml:"timeout"`
	SummaryModel  string   `yaml:"summaryModel"`
	DecisionModel string   `yaml:"decisionModel"`
	ReplyModel    string   `yaml:"replyModel"`
}

// StorageConfig configures the on-disk stores.
type StorageConfig struct {
	InvoicePath string `yaml:"invoicePath"`
	MemoryPath  string `yaml:"memoryPath"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when no file and no overrides
// are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			PollInterval: Duration(10 * time.Minute),
		},
		Workflow: WorkflowConfig{
			CalendarID:      "primary",
			TimeZone:        "Local",
			MeetingDuration: Duration(60 * time.Minute),
			WorkHourStart:   9,
			WorkHourEnd:     17,
			DebounceWindow:  Duration(5 * time.Minute),
			Ordering:        "reply-first",
			MaxInbox:        10,
		},
		Oracle: OracleConfig{
			BaseURL:       "http://localhost:11434",
			Timeout:       Duration(120 * time.Second),
			SummaryModel:  "phi3",
			DecisionModel: "phi3",
			ReplyModel:    "llama3",
		},
		Storage: StorageConfig{
			InvoicePath: "invoices.csv",
			MemoryPath:  "memory.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("INBOXPILOT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("INBOXPILOT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.PollInterval = Duration(d)
		}
	}
	if v := os.Getenv("INBOXPILOT_SEND_REPLIES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.SendReplies = b
		}
	}
	if v := os.Getenv("INBOXPILOT_CALENDAR_ID"); v != "" {
		cfg.Workflow.CalendarID = v
	}
	if v := os.Getenv("INBOXPILOT_TIMEZONE"); v != "" {
		cfg.Workflow.TimeZone = v
	}
	if v := os.Getenv("INBOXPILOT_ORDERING"); v != "" {
		cfg.Workflow.Ordering = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Oracle.BaseURL = v
	}
	if v := os.Getenv("INBOXPILOT_INVOICE_PATH"); v != "" {
		cfg.Storage.InvoicePath = v
	}
	if v := os.Getenv("INBOXPILOT_MEMORY_PATH"); v != "" {
		cfg.Storage.MemoryPath = v
	}
	if v := os.Getenv("INBOXPILOT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("INBOXPILOT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Workflow.Ordering != "reply-first" && c.Workflow.Ordering != "schedule-first" {
		return fmt.Errorf("workflow.ordering must be reply-first or schedule-first, got %q", c.Workflow.Ordering)
	}
	if c.Workflow.WorkHourStart < 0 || c.Workflow.WorkHourEnd > 24 ||
		c.Workflow.WorkHourStart >= c.Workflow.WorkHourEnd {
		return fmt.Errorf("invalid work-hour window %d-%d", c.Workflow.WorkHourStart, c.Workflow.WorkHourEnd)
	}
	if c.Workflow.MaxInbox <= 0 {
		return fmt.Errorf("workflow.maxInbox must be positive, got %d", c.Workflow.MaxInbox)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Workflow.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid workflow.timeZone %q: %w", c.Workflow.TimeZone, err)
	}
	return loc, nil
}
