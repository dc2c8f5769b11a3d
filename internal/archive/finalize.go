package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"ttsync/internal/faults"
	"ttsync/internal/fileutil"
	"ttsync/internal/logging"
)

// FinalName returns the archive name for a run that missed count entries.
func FinalName(path string, count int) string {
	if count <= 0 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s (-%d)%s", strings.TrimSuffix(path, ext), count, ext)
}

// Finalize moves the closed archive into place and returns its final path.
// Archives from earlier runs carrying a missing-count suffix are removed
// first, as is the unsuffixed archive when this run missed entries. The rename and cleanup run under a lock file next to the archive so
// concurrent backups of the same mod do not interleave. Dry runs return the
// name the archive would have had.
func (w *Writer) Finalize() (string, error) {
	final := FinalName(w.path, len(w.missing))
	if w.opts.DryRun {
		return final, nil
	}
	if !w.closed || w.tmp == nil {
		return "", fmt.Errorf("finalize %s: archive not closed", w.path)
	}

	lockPath := strings.TrimSuffix(w.path, filepath.Ext(w.path)) + ".lock"
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("acquire archive lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			w.logger.Warn("failed to release archive lock", logging.Error(err))
		}
		_ = fileutil.RemoveIfExists(lockPath)
	}()

	stale, err := staleArchives(w.path)
	if err != nil {
		return "", err
	}
	if final != w.path && fileutil.Exists(w.path) {
		stale = append(stale, w.path)
	}
	for _, name := range stale {
		if err := os.Remove(name); err != nil {
			return "", fmt.Errorf("remove stale archive: %w", err)
		}
		w.logger.Info("removed stale archive", logging.String("stale", name))
	}

	if err := os.Rename(w.tmp.Name(), final); err != nil {
		w.Abort()
		return "", faults.Wrap(faults.ErrWriteFailure, "archive", "rename", final, err)
	}
	w.tmp = nil
	return final, nil
}

// staleArchives lists "<base> (-N)<ext>" siblings of path.
func staleArchives(path string) ([]string, error) {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	prefix := strings.TrimSuffix(filepath.Base(path), ext) + " (-"

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list archive directory: %w", err)
	}
	var stale []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		stale = append(stale, filepath.Join(dir, name))
	}
	return stale, nil
}
