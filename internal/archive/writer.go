package archive

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"ttsync/internal/faults"
	"ttsync/internal/logging"
)

// MissingListName is the in-archive file listing entries that were not found.
const MissingListName = "missing.txt"

// Options controls archive creation.
type Options struct {
	DryRun        bool
	IgnoreMissing bool
	Deflate       bool
}

// Manifest is stored as the archive comment.
type Manifest struct {
	ScriptRevision string `json:"script_revision"`
	ExportDate     int64  `json:"export_date"`
	Comment        string `json:"comment,omitempty"`
}

// NewManifest stamps a manifest with the current time.
func NewManifest(revision, comment string) Manifest {
	return Manifest{
		ScriptRevision: revision,
		ExportDate:     time.Now().Unix(),
		Comment:        strings.TrimSpace(comment),
	}
}

// Writer builds one archive.
type Writer struct {
	path    string
	opts    Options
	logger  *slog.Logger
	tmp     *os.File
	zw      *zip.Writer
	stored  map[string]struct{}
	missing []string
	closed  bool
}

// Create prepares an archive at path. Nothing is written to disk in dry-run
// mode; otherwise entries go to a temporary file in the same directory until
// Finalize.
func Create(path string, opts Options, logger *slog.Logger) (*Writer, error) {
	w := &Writer{
		path:   path,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "archive").With(logging.String("archive", path)),
		stored: map[string]struct{}{},
	}
	if opts.DryRun {
		return w, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, faults.Wrap(faults.ErrWriteFailure, "archive", "create", path, err)
	}
	w.tmp = tmp
	w.zw = zip.NewWriter(tmp)
	if opts.Deflate {
		w.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, flate.DefaultCompression)
		})
	}
	return w, nil
}

// Path returns the archive path before any missing-count suffix.
func (w *Writer) Path() string { return w.path }

// Missing lists destinations that were referenced but not found, in order.
func (w *Writer) Missing() []string {
	out := make([]string, len(w.missing))
	copy(out, w.missing)
	return out
}

// Add stores src under dest. It reports false when the source is missing and
// ignore-missing mode is on. A destination already handled is accepted
// without touching the archive again.
func (w *Writer) Add(src, dest string) (bool, error) {
	dest = path.Clean(filepath.ToSlash(dest))
	if _, ok := w.stored[dest]; ok {
		return true, nil
	}
	w.stored[dest] = struct{}{}

	info, err := os.Stat(src)
	if err != nil || !info.Mode().IsRegular() {
		if !w.opts.IgnoreMissing {
			return false, faults.Wrap(faults.ErrMissingSource, "archive", "", dest, err)
		}
		w.missing = append(w.missing, dest)
		w.logger.Info("entry not found", logging.String("entry", dest), logging.String("source", src))
		return false, nil
	}

	if w.opts.DryRun {
		w.logger.Debug("entry present", logging.String("entry", dest))
		return true, nil
	}
	if err := w.copyEntry(src, dest, info); err != nil {
		return false, err
	}
	w.logger.Debug("entry stored", logging.String("entry", dest), logging.Size("size", info.Size()))
	return true, nil
}

func (w *Writer) copyEntry(src, dest string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("archive header %s: %w", dest, err)
	}
	header.Name = dest
	header.Method = zip.Store
	if w.opts.Deflate {
		header.Method = zip.Deflate
	}

	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && w.opts.IgnoreMissing {
			w.missing = append(w.missing, dest)
			return nil
		}
		return faults.Wrap(faults.ErrMissingSource, "archive", "", dest, err)
	}
	defer in.Close()

	out, err := w.zw.CreateHeader(header)
	if err != nil {
		return faults.Wrap(faults.ErrWriteFailure, "archive", "add", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		return faults.Wrap(faults.ErrWriteFailure, "archive", "add", dest, err)
	}
	return nil
}

// Close writes the missing-entry list and the manifest comment. In dry-run
// mode the missing entries are only logged.
func (w *Writer) Close(manifest Manifest) error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.opts.DryRun {
		if len(w.missing) > 0 {
			w.logger.Info("missing entries", logging.Int("count", len(w.missing)),
				logging.String("entries", strings.Join(w.missing, ", ")))
		}
		return nil
	}

	if len(w.missing) > 0 {
		out, err := w.zw.Create(MissingListName)
		if err != nil {
			return w.fail(faults.Wrap(faults.ErrWriteFailure, "archive", "add", MissingListName, err))
		}
		if _, err := io.WriteString(out, strings.Join(w.missing, "\n")+"\n"); err != nil {
			return w.fail(faults.Wrap(faults.ErrWriteFailure, "archive", "add", MissingListName, err))
		}
	}

	comment, err := json.Marshal(manifest)
	if err != nil {
		return w.fail(fmt.Errorf("encode manifest: %w", err))
	}
	if err := w.zw.SetComment(string(comment)); err != nil {
		return w.fail(fmt.Errorf("set archive comment: %w", err))
	}
	if err := w.zw.Close(); err != nil {
		return w.fail(faults.Wrap(faults.ErrWriteFailure, "archive", "close", w.path, err))
	}
	if err := w.tmp.Sync(); err != nil {
		return w.fail(faults.Wrap(faults.ErrWriteFailure, "archive", "sync", w.path, err))
	}
	if err := w.tmp.Close(); err != nil {
		return w.fail(faults.Wrap(faults.ErrWriteFailure, "archive", "close", w.path, err))
	}
	return nil
}

// Abort discards a partially written archive.
func (w *Writer) Abort() {
	w.closed = true
	if w.tmp == nil {
		return
	}
	_ = w.tmp.Close()
	_ = os.Remove(w.tmp.Name())
	w.tmp = nil
}

func (w *Writer) fail(err error) error {
	w.Abort()
	return err
}
