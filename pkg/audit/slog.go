package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// SlogLogger writes audit entries as structured records on a slog.Logger.
type SlogLogger struct {
	log      *slog.Logger
	sequence atomic.Int64
}

// NewSlogLogger returns an AuditLogger that logs at info level on log.
func NewSlogLogger(log *slog.Logger) *SlogLogger {
	return &SlogLogger{log: log}
}

// Log emits one "audit" record. Error events are logged at warn level.
func (l *SlogLogger) Log(entry AuditEntry) error {
	entry.Sequence = l.sequence.Add(1)

	attrs := []slog.Attr{
		slog.String("event", entry.Event),
		slog.Int64("sequence", entry.Sequence),
		slog.Time("timestamp", entry.Timestamp),
	}
	if entry.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", entry.TraceID))
	}
	if entry.Actor != nil {
		attrs = append(attrs, slog.String("actor", entry.Actor.UserID))
	}
	if entry.Room != nil {
		attrs = append(attrs, slog.String("room", entry.Room.ID))
	}
	if len(entry.Subjects) > 0 {
		users := make([]string, 0, len(entry.Subjects))
		for _, s := range entry.Subjects {
			users = append(users, s.UserID)
		}
		attrs = append(attrs, slog.Any("subjects", users))
	}

	level := slog.LevelInfo
	if entry.Error != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", entry.Error.Message))
	}
	l.log.LogAttrs(context.Background(), level, "audit", attrs...)
	return nil
}

// Close is a no-op. The application logger is flushed by its owner.
func (l *SlogLogger) Close() error {
	return nil
}

var _ AuditLogger = (*SlogLogger)(nil)
