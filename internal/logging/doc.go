// Package logging assembles structured slog loggers and formatting helpers used
// across ttsync.
//
// It owns the configurable console/JSON handlers and exposes context-aware
// helpers so the fetch and archive code can tag log lines with the document
// being processed and the run identifier. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
