package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a warning or error for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDocument is the save document being processed.
	FieldDocument = "document"
	// FieldURL is the asset URL a record refers to.
	FieldURL = "url"
	// FieldKind is the asset kind of a reference.
	FieldKind = "kind"
	// FieldRunID correlates every record emitted while processing one document.
	FieldRunID = "run_id"
)

type contextKey string

const (
	runIDKey    contextKey = "run_id"
	documentKey contextKey = "document"
)

// WithRunID returns a derived context carrying the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier when present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// WithDocument returns a derived context carrying the document path.
func WithDocument(ctx context.Context, path string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, documentKey, path)
}

// DocumentFromContext extracts the document path when present.
func DocumentFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	path, ok := ctx.Value(documentKey).(string)
	if !ok || strings.TrimSpace(path) == "" {
		return "", false
	}
	return path, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if path, ok := DocumentFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDocument, path))
	}
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
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
