package logging

import (
	"context"
	"log/slog"

	"bookclub/internal/services"
)

// Structured log keys shared by every component.
const (
	FieldComponent     = "component"
	FieldReaderID      = "reader_id"
	FieldGroupID       = "group_id"
	FieldBookID        = "book_id"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering, e.g. group_formed.
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	// FieldImpact says what the reader or operator loses when a warning fires.
	FieldImpact = "impact"
)

// WithContext binds the reader, group, book and request ids carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if id, ok := services.ReaderIDFromContext(ctx); ok {
		args = append(args, ReaderID(id))
	}
	if id, ok := services.GroupIDFromContext(ctx); ok {
		args = append(args, GroupID(id))
	}
	if id, ok := services.BookIDFromContext(ctx); ok {
		args = append(args, BookID(id))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		args = append(args, String(FieldCorrelationID, id))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
