package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"ttsync/internal/asset"
	"ttsync/internal/faults"
	"ttsync/internal/logging"
	"ttsync/internal/savefile"
)

const (
	defaultTimeout        = 5 * time.Second
	defaultUserAgent      = "tts-backup"
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second

	// removedSentinel is the placeholder image some hosts redirect to once a
	// file has been deleted.
	removedSentinel = "removed.png"
)

// Options carries the per-run fetch settings.
type Options struct {
	DryRun           bool
	Refetch          bool
	RelaxContentType bool
	Timeout          time.Duration
	Retries          int
	UserAgent        string
}

// Engine downloads references into an asset cache.
type Engine struct {
	cache      *asset.Cache
	opts       Options
	logger     *slog.Logger
	httpClient *http.Client
	attempted  map[string]struct{}

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

// Option customizes the engine.
type Option func(*Engine)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the delays between retries.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(e *Engine) {
		e.retryBaseDelay = baseDelay
		e.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Engine) {
		if sleeper != nil {
			e.sleeper = sleeper
		}
	}
}

// New constructs an engine writing into cache.
func New(cache *asset.Cache, opts Options, logger *slog.Logger, options ...Option) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	opts.UserAgent = strings.TrimSpace(opts.UserAgent)
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	e := &Engine{
		cache:          cache,
		opts:           opts,
		logger:         logging.NewComponentLogger(logger, "fetch"),
		httpClient:     &http.Client{Timeout: opts.Timeout},
		attempted:      map[string]struct{}{},
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
		sleeper:        time.Sleep,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Prefetch fetches every reference of doc and writes the missing-file report
// next to the document when anything could not be fetched. Cancellation is
// honoured between references; the report is not written for a cancelled run.
func (e *Engine) Prefetch(ctx context.Context, doc *savefile.Document) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := logging.RunIDFromContext(ctx); !ok {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	if doc.Path() != "" {
		ctx = logging.WithDocument(ctx, doc.Path())
	}
	logger := logging.WithContext(ctx, e.logger)

	result := &Result{Document: doc.Path(), SaveName: doc.SaveName()}
	mode := "prefetching assets"
	if e.opts.DryRun {
		mode = "dry run"
	}
	logger.Info(mode, logging.String("save_name", result.SaveName))

	for ref, err := range doc.References() {
		if err != nil {
			return result, err
		}
		if err := ctx.Err(); err != nil {
			logger.Info("prefetch aborted", logging.Int("missing", len(result.Missing)))
			return result, err
		}
		outcome, err := e.Fetch(ctx, ref)
		if err != nil {
			return result, err
		}
		switch outcome.State {
		case StateSucceeded:
			result.Succeeded++
		case StateSkipped:
			result.Skipped++
		case StateFailed:
			result.Missing = append(result.Missing, Missing{URL: ref.URL, Reason: outcome.Reason})
		}
	}

	if len(result.Missing) > 0 && doc.Path() != "" {
		report, err := WriteMissingReport(filepath.Dir(doc.Path()), doc.ID(), result.SaveName, result.Missing)
		if err != nil {
			return result, err
		}
		result.ReportPath = report
		logging.WarnWithContext(logger, "some assets could not be fetched", "assets_missing",
			logging.Int("missing", len(result.Missing)),
			logging.String("report", report),
			logging.String(logging.FieldImpact, "the mod will show placeholders for these assets"),
			logging.String(logging.FieldErrorHint, "inspect the report; re-run later for transient host failures"),
		)
	}

	done := "prefetch completed"
	if e.opts.DryRun {
		done = "dry run completed"
	}
	logger.Info(done,
		logging.Int("fetched", result.Succeeded),
		logging.Int("skipped", result.Skipped),
		logging.Int("missing", len(result.Missing)),
	)
	return result, nil
}

// Fetch processes a single reference. The returned error is non-nil only for
// conditions that must abort the run: exhausted retries, failed writes and
// unclassifiable references. Everything else is reported through the outcome.
func (e *Engine) Fetch(ctx context.Context, ref savefile.Reference) (Outcome, error) {
	logger := logging.WithContext(ctx, e.logger).With(logging.String(logging.FieldURL, ref.URL))
	outcome := Outcome{Reference: ref}

	kind, err := asset.Classify(ref.Path)
	if err != nil {
		return outcome, err
	}
	outcome.Kind = kind
	logger = logger.With(logging.String(logging.FieldKind, kind.String()))

	if _, seen := e.attempted[ref.URL]; seen {
		return skipped(outcome, SkipDuplicate), nil
	}
	e.attempted[ref.URL] = struct{}{}

	fetchURL := withScheme(ref.URL)
	parsed, err := url.Parse(fetchURL)
	if err != nil || parsed.Hostname() == "" {
		return failed(logger, outcome, "Invalid hostname"), nil
	}
	if strings.Contains(parsed.Hostname(), "localhost") {
		logger.Debug("skipping localhost asset")
		return skipped(outcome, SkipLocalhost), nil
	}

	rel, resolved := e.cache.Resolve(kind, ref.URL)
	if resolved {
		outcome.Path = rel
		if !asset.Pending(rel) && e.cache.Exists(rel) && !e.opts.Refetch {
			logger.Debug("asset already cached", logging.String("path", rel))
			return skipped(outcome, SkipCached), nil
		}
	}

	if e.opts.DryRun {
		logger.Info("would fetch asset")
		return skipped(outcome, SkipDryRun), nil
	}

	logger.Info("fetching asset")
	resp, err := e.getWithRetry(ctx, logger, fetchURL)
	if err != nil {
		if errors.Is(err, faults.ErrRetryExhausted) {
			return outcome, err
		}
		return failed(logger, outcome, failureReason(err)), nil
	}

	if path.Base(resp.finalURL.Path) == removedSentinel {
		return failed(logger, outcome, "Removed"), nil
	}

	contentType := strings.TrimSpace(resp.header.Get("Content-Type"))
	expected := contentType == "" || kind.AcceptsContentType(contentType)
	if !expected && !e.opts.RelaxContentType {
		return failed(logger, outcome, wrongContentType(contentType, resp.body)), nil
	}
	outcome.Relaxed = !expected

	if !resolved || asset.Pending(rel) {
		ext := responseExtension(resp.header, parsed)
		if !resolved {
			rel, resolved = e.cache.PathForExtension(ref.URL, ext)
			if !resolved {
				return failed(logger, outcome, fmt.Sprintf("Unknown file type (%s)", ext)), nil
			}
		} else {
			rel += e.pendingExtension(logger, kind, ext, contentType)
		}
		outcome.Path = rel
	}

	return e.store(logger, outcome, resp.body, contentType)
}

// pendingExtension picks the extension for an audio or image reference whose
// URL carried no usable hint. A response extension outside the kind's
// candidates is ignored so the stored file stays resolvable.
func (e *Engine) pendingExtension(logger *slog.Logger, kind asset.Kind, ext, contentType string) string {
	if ext != "" && slices.Contains(kind.Extensions(), ext) {
		return ext
	}
	switch asset.MediaType(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	}
	fallback := kind.DefaultExtension()
	logging.WarnWithContext(logger, "no extension hint in response; using kind default", "extension_defaulted",
		logging.String("extension", fallback),
		logging.String("content_type", contentType),
		logging.String(logging.FieldImpact, "the game may not recognize the cached file"),
		logging.String(logging.FieldErrorHint, "verify the asset opens in game; delete it to refetch"),
	)
	return fallback
}

// responseExtension derives the extension from the Content-Disposition
// filename, falling back to the URL path without its query.
func responseExtension(header http.Header, u *url.URL) string {
	if disposition := header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return asset.FixExtCase(path.Ext(name))
			}
		}
	}
	return asset.FixExtCase(path.Ext(u.Path))
}

// withScheme assumes http for URLs written without a scheme.
func withScheme(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		return raw
	}
	return "http://" + raw
}

func skipped(outcome Outcome, reason SkipReason) Outcome {
	outcome.State = StateSkipped
	outcome.Skip = reason
	return outcome
}

func failed(logger *slog.Logger, outcome Outcome, reason string) Outcome {
	outcome.State = StateFailed
	outcome.Reason = reason
	logging.WarnWithContext(logger, "asset unavailable", "asset_missing",
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "asset recorded as missing"),
		logging.String(logging.FieldErrorHint, "check the URL in a browser; the host may have removed the file"),
	)
	return outcome
}
