package fileutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Written describes the outcome of WriteAtomic.
type Written struct {
	Path   string
	Size   int64
	Digest []byte
	// Unchanged reports that an identical file already existed at Path and
	// was left untouched.
	Unchanged bool
}

// WriteAtomic streams r into a temporary file next to path and renames it into
// place once the copy completes. The temporary file is removed on any failure,
// so a partially written payload never becomes visible under path. When a file
// with identical content already exists, it is kept and the temporary copy is
// discarded.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) (Written, error) {
	result := Written{Path: path}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("create directory: %w", err)
	}

	tmpPath := tempName(path)
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return result, fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = out.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := blake3.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), r)
	if err != nil {
		return result, fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := out.Sync(); err != nil {
		return result, fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := out.Close(); err != nil {
		return result, fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	result.Size = written
	result.Digest = hasher.Sum(nil)

	existing, size, err := FileDigest(path)
	if err == nil && size == written && bytes.Equal(existing, result.Digest) {
		result.Unchanged = true
		return result, nil
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return result, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return result, nil
}

// FileDigest returns the BLAKE3 digest and size of the file at path.
func FileDigest(path string) ([]byte, int64, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer in.Close()

	hasher := blake3.New()
	size, err := io.Copy(hasher, in)
	if err != nil {
		return nil, 0, err
	}
	return hasher.Sum(nil), size, nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// RemoveIfExists deletes path, ignoring a missing file.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func tempName(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
}
