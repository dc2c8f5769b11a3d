package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"ttsync/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Writer receives the records; nil means stderr.
	Writer io.Writer
}

// New constructs a slog logger. Debug level turns on verbose output: source
// locations and run ids.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	verbose := level <= slog.LevelDebug

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newConsoleHandler(w, level, verbose)), nil
	case "json":
		return slog.New(newJSONHandler(w, level, verbose)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates a logger from the [logging] table writing to w.
// Commands pass stderr so their stdout stays parseable.
func NewFromConfig(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Writer: w})
	}
	return New(Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: w,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
