// Package audit provides structured audit logging for security-relevant
// admin API events. Every entry carries machine-filterable fields so the
// trail can be queried by subject, file or action.
package audit

import (
	"github.com/rs/zerolog"
)

// Logger writes audit events through a zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger from a zerolog.Logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

// LogAuth logs an admin API authentication attempt.
// subject: the token subject (empty for failed attempts)
// result: "allowed" or "denied"
// details: additional context (e.g. the verification error)
// sourceIP: remote address of the request
func (l *Logger) LogAuth(subject, result, details, sourceIP string) {
	level := zerolog.InfoLevel
	if result == "denied" {
		level = zerolog.WarnLevel
	}

	event := l.logger.WithLevel(level).
		Str("event_type", "auth").
		Str("result", result).
		Str("source_ip", sourceIP)

	if subject != "" {
		event = event.Str("subject", subject)
	}
	if details != "" {
		event = event.Str("details", details)
	}

	event.Msg("Authentication event")
}

// LogFileOp logs a file operation performed through the admin API.
// subject: the authenticated token subject
// operation: what was done (e.g. "get_url", "archive")
// fileID: the record acted on (may be empty for batch operations)
// result: "ok" or "error"
// details: additional context (e.g. error message, moved count)
// sourceIP: remote address of the request
func (l *Logger) LogFileOp(subject, operation, fileID, result, details, sourceIP string) {
	level := zerolog.InfoLevel
	if result == "error" {
		level = zerolog.WarnLevel
	}

	event := l.logger.WithLevel(level).
		Str("event_type", "file_operation").
		Str("subject", subject).
		Str("operation", operation).
		Str("result", result).
		Str("source_ip", sourceIP)

	if fileID != "" {
		event = event.Str("file_id", fileID)
	}
	if details != "" {
		event = event.Str("details", details)
	}

	event.Msg("File operation")
}

// LogOrphanOp logs an orphan reconciliation action. Deleting orphans is
// destructive and adopting them grants records, so both sides are recorded
// with their scope.
// subject: the authenticated token subject
// action: "delete" or "adopt"
// tierName: tier filter (empty means both tiers)
// prefix: key prefix filter (may be empty)
// affected: objects deleted or adopted
// dryRun: true when nothing was changed
// sourceIP: remote address of the request
func (l *Logger) LogOrphanOp(subject, action, tierName, prefix string, affected int, dryRun bool, sourceIP string) {
	event := l.logger.Info().
		Str("event_type", "orphan_reconciliation").
		Str("subject", subject).
		Str("action", action).
		Int("affected", affected).
		Bool("dry_run", dryRun).
		Str("source_ip", sourceIP)

	if tierName != "" {
		event = event.Str("tier", tierName)
	}
	if prefix != "" {
		event = event.Str("prefix", prefix)
	}

	event.Msg("Orphan reconciliation")
}
