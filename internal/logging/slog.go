package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyRunID    = "run_id"
	KeyStep     = "step"
	KeyAction   = "action"
	KeyStatus   = "status"
	KeyDuration = "duration"
	KeyError    = "error"
	KeyUserHash = "user_hash"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// New builds a *slog.Logger writing to stderr. Level is one of debug,
// info, warn, error (default info); format is text or json (default
// text). Unknown values fall back to the defaults rather than failing,
// so a typo in configuration never silences the process.
func New(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// WithStep returns a logger with the workflow step attribute set.
func WithStep(logger *slog.Logger, step string) *slog.Logger {
	return logger.With(slog.String(KeyStep, step))
}

// RunID returns a slog attribute for the workflow run identifier.
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// Step returns a slog attribute for the workflow step name.
func Step(step string) slog.Attr {
	return slog.String(KeyStep, step)
}

// Action returns a slog attribute for the routing action.
func Action(action string) slog.Attr {
	return slog.String(KeyAction, action)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted
// from output, so Err(maybeNilErr) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email address for
// logging purposes. This allows correlation of log entries without
// exposing PII.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized sender address.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}
