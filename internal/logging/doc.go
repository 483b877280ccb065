// Package logging provides structured logging helpers for the
// inboxpilot application.
//
// It centralizes slog attribute naming so workflow runs can be
// correlated across steps, and it offers a constructor turning the
// level/format configuration into a ready *slog.Logger.
//
// Typical usage:
//
//	logger := logging.New("info", "json")
//	log := logging.WithStep(logger.With(logging.RunID(id)), "summarize")
//	log.Info("summary created", logging.Status(logging.StatusSuccess))
//
// Sender addresses are personal data; log them only through UserHash,
// which hashes the address while preserving correlation.
package logging
