package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ttsync/internal/config"
	"ttsync/internal/faults"
	"ttsync/internal/logging"
	"ttsync/internal/mtimes"
)

// ErrNoDocuments is returned when no input names were given.
var ErrNoDocuments = errors.New("no documents given")

// Task processes one document.
type Task func(ctx context.Context, path string) error

// Options controls document selection and bookkeeping.
type Options struct {
	// All treats every name as a directory of documents.
	All    bool
	DryRun bool
	// IndexName is the timestamp database file name.
	IndexName string
	// IndexDir holds the index for every document. Empty means the index
	// lives beside each document.
	IndexDir string
}

// Summary reports what a batch did.
type Summary struct {
	Selected  int
	Processed []string
}

// Runner executes tasks over resolved documents.
type Runner struct {
	cfg     *config.Config
	opts    Options
	logger  *slog.Logger
	indexes map[string]*mtimes.Index
}

// NewRunner constructs a runner.
func NewRunner(cfg *config.Config, opts Options, logger *slog.Logger) *Runner {
	if opts.IndexName == "" {
		opts.IndexName = mtimes.PrefetchIndexName
	}
	return &Runner{
		cfg:     cfg,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "batch"),
		indexes: map[string]*mtimes.Index{},
	}
}

// Close releases any open timestamp indexes.
func (r *Runner) Close() error {
	var errs []error
	for dir, idx := range r.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index in %s: %w", dir, err))
		}
		delete(r.indexes, dir)
	}
	return errors.Join(errs...)
}

// Run resolves names and runs task on each document in order.
func (r *Runner) Run(ctx context.Context, names []string, task Task) (Summary, error) {
	var summary Summary
	docs, err := r.Resolve(ctx, names)
	if err != nil {
		return summary, err
	}
	summary.Selected = len(docs)
	if len(docs) == 0 {
		r.logger.Info("no documents need processing")
		return summary, nil
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		docCtx := logging.WithDocument(logging.WithRunID(ctx, uuid.NewString()), doc)
		logger := logging.WithContext(docCtx, r.logger)

		if err := task(docCtx, doc); err != nil {
			if !errors.Is(err, context.Canceled) {
				logging.ErrorWithContext(logger, "document failed, aborting", faults.EventType(err),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, faults.Hint(err)),
				)
			}
			return summary, err
		}
		summary.Processed = append(summary.Processed, doc)

		if r.opts.DryRun {
			continue
		}
		if err := r.record(context.WithoutCancel(docCtx), doc); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// Resolve maps input names to document paths.
func (r *Runner) Resolve(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, ErrNoDocuments
	}
	if !r.opts.All {
		docs := make([]string, 0, len(names))
		for _, name := range names {
			docs = append(docs, r.documentPath(name))
		}
		return docs, nil
	}

	var docs []string
	for _, name := range names {
		dir, err := r.directoryPath(name)
		if err != nil {
			return nil, err
		}
		idx, err := r.selectionIndex(ctx, r.indexDir(dir))
		if err != nil {
			return nil, err
		}
		due, err := idx.DueDocuments(ctx, dir)
		if err != nil {
			return nil, err
		}
		r.logger.Info("selected documents",
			logging.String("directory", dir),
			logging.Int("due", len(due)),
		)
		docs = append(docs, due...)
	}
	return docs, nil
}

func (r *Runner) documentPath(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(r.cfg.WorkshopDir(), name)
}

func (r *Runner) directoryPath(name string) (string, error) {
	if info, err := os.Stat(name); err == nil && info.IsDir() {
		return name, nil
	}
	candidate := filepath.Join(r.cfg.ModsDir(), strings.TrimSpace(name))
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate, nil
	}
	return "", fmt.Errorf("cannot find directory %s", candidate)
}

func (r *Runner) indexDir(docDir string) string {
	if r.opts.IndexDir != "" {
		return r.opts.IndexDir
	}
	return docDir
}

func (r *Runner) index(ctx context.Context, dir string) (*mtimes.Index, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve index directory: %w", err)
	}
	if idx, ok := r.indexes[abs]; ok {
		return idx, nil
	}
	idx, err := mtimes.Open(ctx, filepath.Join(abs, r.opts.IndexName))
	if err != nil {
		return nil, err
	}
	r.indexes[abs] = idx
	return idx, nil
}

// selectionIndex opens the index used to pick due documents. A dry run
// never creates an index; without one every document is due.
func (r *Runner) selectionIndex(ctx context.Context, dir string) (*mtimes.Index, error) {
	if r.opts.DryRun {
		if _, err := os.Stat(filepath.Join(dir, r.opts.IndexName)); err != nil {
			return nil, nil
		}
	}
	return r.index(ctx, dir)
}

func (r *Runner) record(ctx context.Context, doc string) error {
	idx, err := r.index(ctx, r.indexDir(filepath.Dir(doc)))
	if err != nil {
		return err
	}
	if err := idx.RecordFile(ctx, doc); err != nil {
		return err
	}
	return nil
}
