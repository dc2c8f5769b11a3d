package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ttsync/internal/archive"
	"ttsync/internal/asset"
	"ttsync/internal/config"
	"ttsync/internal/logging"
	"ttsync/internal/savefile"
	"ttsync/internal/textutil"
)

// WorkshopEntryDir is where the document and its thumbnail are stored inside
// the archive.
const WorkshopEntryDir = "Mods/Workshop"

// Options carries per-invocation settings that are not part of the config.
type Options struct {
	// OutputDir receives the archive. Empty means cfg.Paths.OutputDir.
	OutputDir string
	// OutputName overrides the default "<save name> [<id>].zip".
	OutputName string
	DryRun     bool
	// Revision is stored in the archive manifest. Empty means Revision().
	Revision string
	Progress Progress
}

// Result summarizes one backup.
type Result struct {
	Document string
	SaveName string
	Archive  string
	Entries  int
	Missing  []string
	DryRun   bool
}

// Entry is one planned archive member.
type Entry struct {
	Source string
	Name   string
}

// Run archives the document at savePath together with every cached asset it
// references. Archive compression, the missing-file policy and the comment
// come from cfg.Backup.
func Run(ctx context.Context, cfg *config.Config, savePath string, opts Options, logger *slog.Logger) (*Result, error) {
	if cfg == nil {
		return nil, errors.New("backup: config is required")
	}
	if opts.Progress == nil {
		opts.Progress = NopProgress{}
	}
	if _, ok := logging.RunIDFromContext(ctx); !ok {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	ctx = logging.WithDocument(ctx, savePath)
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "backup"))

	doc, err := savefile.Load(savePath)
	if err != nil {
		return nil, fmt.Errorf("read references from %s: %w", savePath, err)
	}
	cache := asset.NewCache(cfg.Paths.GamedataDir)
	entries, err := Plan(cache, doc)
	if err != nil {
		return nil, fmt.Errorf("read references from %s: %w", savePath, err)
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = cfg.Paths.OutputDir
	}
	name := opts.OutputName
	if name == "" {
		name = DefaultArchiveName(doc)
	}
	target := filepath.Join(outDir, name)
	if !opts.DryRun {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	writer, err := archive.Create(target, archive.Options{
		DryRun:        opts.DryRun,
		IgnoreMissing: cfg.Backup.IgnoreMissing,
		Deflate:       cfg.Backup.Deflate,
	}, logger)
	if err != nil {
		return nil, err
	}

	result := &Result{Document: savePath, SaveName: doc.SaveName(), DryRun: opts.DryRun}
	logger.Info("backing up", logging.String("save_name", result.SaveName), logging.Int("entries", len(entries)))

	opts.Progress.Start(fmt.Sprintf("%s [%s]", filepath.Base(savePath), result.SaveName), len(entries))
	defer opts.Progress.Finish()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			writer.Abort()
			return result, err
		}
		stored, err := writer.Add(entry.Source, entry.Name)
		if err != nil {
			writer.Abort()
			if !opts.DryRun {
				logging.ErrorWithContext(logger, "archive is incomplete", "backup_aborted",
					logging.String("entry", entry.Name),
					logging.Error(err),
				)
			}
			return result, err
		}
		result.Entries++
		opts.Progress.Entry(entry.Name, stored)
	}

	revision := opts.Revision
	if revision == "" {
		revision = Revision()
	}
	if err := writer.Close(archive.NewManifest(revision, cfg.Backup.Comment)); err != nil {
		return result, err
	}
	final, err := writer.Finalize()
	if err != nil {
		return result, err
	}
	result.Archive = final
	result.Missing = writer.Missing()

	if opts.DryRun {
		logger.Info("dry run completed", logging.String("archive", final), logging.Int("missing", len(result.Missing)))
		return result, nil
	}
	if len(result.Missing) > 0 {
		logging.WarnWithContext(logger, "archive written with missing entries", "backup_incomplete",
			logging.String("archive", final),
			logging.Int("missing", len(result.Missing)),
			logging.String(logging.FieldImpact, "the restored mod will lack these assets"),
			logging.String(logging.FieldErrorHint, "run prefetch for the document and back it up again"),
		)
	}
	logger.Info("backup completed", logging.String("archive", final), logging.Int("entries", result.Entries))
	return result, nil
}

// Plan lists the archive members for doc: the cache path of every reference
// in extraction order, then the document and its thumbnail.
func Plan(cache *asset.Cache, doc *savefile.Document) ([]Entry, error) {
	var entries []Entry
	for ref, err := range doc.References() {
		if err != nil {
			return nil, err
		}
		kind, err := asset.Classify(ref.Path)
		if err != nil {
			return nil, err
		}
		rel, ok := cache.Resolve(kind, ref.URL)
		if !ok {
			rel = asset.Normalize(ref.URL)
		}
		entries = append(entries, Entry{Source: cache.Abs(rel), Name: rel})
	}

	if doc.Path() == "" {
		return entries, nil
	}
	base := filepath.Base(doc.Path())
	entries = append(entries, Entry{Source: doc.Path(), Name: path.Join(WorkshopEntryDir, base)})

	thumb := strings.TrimSuffix(doc.Path(), filepath.Ext(doc.Path())) + ".png"
	if info, err := os.Stat(thumb); err == nil && info.Mode().IsRegular() {
		entries = append(entries, Entry{Source: thumb, Name: path.Join(WorkshopEntryDir, filepath.Base(thumb))})
	}
	return entries, nil
}

// DefaultArchiveName derives "<safe save name> [<id>].zip", falling back to
// the document id when the save has no name.
func DefaultArchiveName(doc *savefile.Document) string {
	id := doc.ID()
	base := id
	if name := doc.SaveName(); name != savefile.UnknownSaveName {
		base = textutil.MakeSafeFilename(name)
	}
	return fmt.Sprintf("%s [%s].zip", base, id)
}

// SplitOutput interprets an --outname value: an existing directory receives
// the default archive name, anything else names the archive file itself.
// Relative values are taken from the working directory.
func SplitOutput(outName string) (dir, name string, err error) {
	if strings.TrimSpace(outName) == "" {
		return "", "", nil
	}
	abs, err := filepath.Abs(outName)
	if err != nil {
		return "", "", fmt.Errorf("resolve output %q: %w", outName, err)
	}
	if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
		return abs, "", nil
	}
	return filepath.Dir(abs), filepath.Base(abs), nil
}
