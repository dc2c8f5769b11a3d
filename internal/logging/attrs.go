package logging

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Size renders a byte count for humans ("1.2 MB").
func Size(key string, bytes int64) Attr {
	if bytes < 0 {
		bytes = 0
	}
	return slog.String(key, humanize.Bytes(uint64(bytes)))
}

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attributes into the variadic form accepted by slog.Logger methods.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// HasAttrKey returns true if any attribute in attrs has the given key.
func HasAttrKey(attrs []Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

const (
	defaultErrorHint = "check logs for details"
	defaultImpact    = "operation completed with warnings"
)

// WarnWithContext logs a warning carrying event_type, error_hint and impact.
// Fields absent from attrs get defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, defaultErrorHint)
	attrs = withDefault(attrs, FieldImpact, defaultImpact)
	logger.Warn(msg, Args(attrs...)...)
}

// ErrorWithContext logs an error carrying event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefault(attrs, FieldEventType, eventType)
	attrs = withDefault(attrs, FieldErrorHint, defaultErrorHint)
	logger.Error(msg, Args(attrs...)...)
}

func withDefault(attrs []Attr, key, value string) []Attr {
	if HasAttrKey(attrs, key) {
		return attrs
	}
	return append(attrs, String(key, value))
}
