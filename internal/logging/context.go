package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBookID is the standardized structured logging key for book identifiers.
	FieldBookID = "book_id"
	// FieldChapterID is the standardized structured logging key for chapter identifiers.
	FieldChapterID = "chapter_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldChannel is the standardized structured logging key for task queue channels.
	FieldChannel = "channel"
	// FieldCorrelationID is the standardized structured logging key for task correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags lifecycle events (stage_start, stage_complete, stage_failure).
	FieldEventType = "event_type"
)

type contextKey string

const (
	bookIDKey        contextKey = "book_id"
	chapterIDKey     contextKey = "chapter_id"
	stageKey         contextKey = "stage"
	correlationIDKey contextKey = "correlation_id"
)

// WithBook attaches a book identifier to the context for log enrichment.
func WithBook(ctx context.Context, bookID string) context.Context {
	return context.WithValue(ctx, bookIDKey, bookID)
}

// WithChapter attaches a chapter identifier to the context for log enrichment.
func WithChapter(ctx context.Context, chapterID string) context.Context {
	return context.WithValue(ctx, chapterIDKey, chapterID)
}

// WithStage attaches a stage name to the context for log enrichment.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// WithCorrelationID attaches a task correlation identifier to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if v, ok := ctx.Value(bookIDKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldBookID, v))
	}
	if v, ok := ctx.Value(chapterIDKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldChapterID, v))
	}
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldStage, v))
	}
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldCorrelationID, v))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
