package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotASaveDocument     = errors.New("not a save document")
	ErrMissingSource        = errors.New("missing source file")
	ErrFetch                = errors.New("fetch failure")
	ErrRetryExhausted       = errors.New("retries exhausted")
	ErrWriteFailure         = errors.New("write failure")
	ErrUnknownReferenceKind = errors.New("unknown reference kind")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrFetch
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// EventType maps an error to the structured log event_type used when a
// document run fails.
func EventType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotASaveDocument):
		return "not_a_save_document"
	case errors.Is(err, ErrMissingSource):
		return "missing_source"
	case errors.Is(err, ErrRetryExhausted):
		return "retry_exhausted"
	case errors.Is(err, ErrWriteFailure):
		return "write_failure"
	case errors.Is(err, ErrUnknownReferenceKind):
		return "unknown_reference_kind"
	case errors.Is(err, ErrFetch):
		return "fetch_failure"
	default:
		return "run_failed"
	}
}

// Hint returns the operator guidance attached to a failed run.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrNotASaveDocument):
		return "pass a save or workshop mod in JSON format"
	case errors.Is(err, ErrMissingSource):
		return "run prefetch first or pass --ignore-missing"
	case errors.Is(err, ErrRetryExhausted):
		return "check network connectivity and re-run; raise fetch.retries or the timeout if the host is slow"
	case errors.Is(err, ErrWriteFailure):
		return "check free disk space and permissions of the gamedata directory"
	case errors.Is(err, ErrUnknownReferenceKind):
		return "the document has an unsupported shape"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}
