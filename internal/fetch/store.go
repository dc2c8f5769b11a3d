package fetch

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"ttsync/internal/faults"
	"ttsync/internal/fileutil"
	"ttsync/internal/logging"
	"ttsync/internal/textutil"
)

func (e *Engine) store(logger *slog.Logger, outcome Outcome, body []byte, contentType string) (Outcome, error) {
	target := e.cache.Abs(outcome.Path)
	written, err := fileutil.WriteAtomic(target, bytes.NewReader(body), 0o644)
	if err != nil {
		return outcome, faults.Wrap(faults.ErrWriteFailure, "fetch", outcome.Reference.URL,
			"write "+outcome.Path, err)
	}

	outcome.State = StateSucceeded
	outcome.Size = written.Size
	outcome.Unchanged = written.Unchanged

	attrs := []logging.Attr{
		logging.String("path", outcome.Path),
		logging.Size("size", written.Size),
	}
	if written.Unchanged {
		logger.Info("asset unchanged", logging.Args(attrs...)...)
	} else {
		logger.Info("asset stored", logging.Args(attrs...)...)
	}
	if outcome.Relaxed {
		logging.WarnWithContext(logger, "content type did not match the expected type", "content_type_relaxed",
			logging.String("content_type", contentType),
			logging.String(logging.FieldImpact, "payload stored without validation"),
			logging.String(logging.FieldErrorHint, "verify the asset loads in game"),
		)
	}
	return outcome, nil
}

// MissingReportName returns the sidecar file name for a document's missing
// assets.
func MissingReportName(workshopID, saveName string) string {
	return fmt.Sprintf("%s [%s] missing.txt", workshopID, textutil.MakeSafeFilename(saveName))
}

// WriteMissingReport writes one "url: reason" line per record into dir and
// returns the report path.
func WriteMissingReport(dir, workshopID, saveName string, records []Missing) (string, error) {
	var buf strings.Builder
	for _, record := range records {
		fmt.Fprintf(&buf, "%s: %s\n", record.URL, record.Reason)
	}
	target := filepath.Join(dir, MissingReportName(workshopID, saveName))
	if _, err := fileutil.WriteAtomic(target, strings.NewReader(buf.String()), 0o644); err != nil {
		return "", faults.Wrap(faults.ErrWriteFailure, "fetch", "missing report", target, err)
	}
	return target, nil
}
