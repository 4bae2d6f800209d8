package services

import "context"

type contextKey string

const (
	readerIDKey  contextKey = "reader_id"
	groupIDKey   contextKey = "group_id"
	bookIDKey    contextKey = "book_id"
	requestIDKey contextKey = "request_id"
)

// WithReaderID annotates context with the acting reader.
func WithReaderID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, readerIDKey, id)
}

// ReaderIDFromContext returns the acting reader if present.
func ReaderIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, readerIDKey)
}

// WithGroupID annotates context with the group being operated on.
func WithGroupID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, groupIDKey, id)
}

// GroupIDFromContext returns the group identifier if present.
func GroupIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, groupIDKey)
}

// WithBookID annotates context with the book being operated on.
func WithBookID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, bookIDKey, id)
}

// BookIDFromContext returns the book identifier if present.
func BookIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, bookIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
