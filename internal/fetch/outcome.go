package fetch

import (
	"ttsync/internal/asset"
	"ttsync/internal/savefile"
)

// State is the terminal state of a single reference.
type State int

const (
	StateSkipped State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSkipped:
		return "skipped"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SkipReason explains why a reference was not downloaded.
type SkipReason string

const (
	SkipLocalhost SkipReason = "localhost"
	SkipDuplicate SkipReason = "duplicate"
	SkipCached    SkipReason = "cached"
	SkipDryRun    SkipReason = "dry-run"
)

// Missing records a reference that could not be fetched.
type Missing struct {
	URL    string
	Reason string
}

// Outcome describes what happened to one reference.
type Outcome struct {
	Reference savefile.Reference
	Kind      asset.Kind
	State     State
	Skip      SkipReason
	// Path is the cache-relative destination, when known.
	Path string
	// Reason is set for failed references.
	Reason    string
	Size      int64
	Unchanged bool
	// Relaxed reports that the payload was written despite an unexpected
	// content type.
	Relaxed bool
}

// Result summarizes a Prefetch run over one document.
type Result struct {
	Document   string
	SaveName   string
	Succeeded  int
	Skipped    int
	Missing    []Missing
	ReportPath string
}
