package fileutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomicCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Mods", "Images", "examplecomimg.png")

	res, err := WriteAtomic(path, strings.NewReader("png-bytes"), 0o644)
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if res.Size != int64(len("png-bytes")) || res.Unchanged {
		t.Fatalf("unexpected result %+v", res)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "png-bytes" {
		t.Fatalf("content mismatch: %q", got)
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestWriteAtomicLeavesIdenticalFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.obj")
	if err := os.WriteFile(path, []byte("same"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	res, err := WriteAtomic(path, strings.NewReader("same"), 0o644)
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if !res.Unchanged {
		t.Fatal("expected identical payload to be reported unchanged")
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(before, after) {
		t.Fatal("identical payload should not replace the existing file")
	}
	assertNoTempFiles(t, dir)
}

func TestWriteAtomicReplacesDifferentContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.obj")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := WriteAtomic(path, strings.NewReader("new content"), 0o644); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "new content" {
		t.Fatalf("expected replaced content, got %q", got)
	}
}

type failingReader struct{ sent bool }

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, "partial"), nil
	}
	return 0, io.ErrUnexpectedEOF
}

func TestWriteAtomicRemovesTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.obj")

	_, err := WriteAtomic(path, &failingReader{}, 0o644)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
	if Exists(path) {
		t.Fatal("partial payload must not be visible")
	}
	assertNoTempFiles(t, dir)
}

func TestFileDigestMatchesWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.txt")
	res, err := WriteAtomic(path, strings.NewReader("digest me"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	digest, size, err := FileDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if size != res.Size || !bytes.Equal(digest, res.Digest) {
		t.Fatalf("digest mismatch: %x/%d vs %x/%d", digest, size, res.Digest, res.Size)
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	if err := RemoveIfExists(filepath.Join(dir, "absent")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
	path := filepath.Join(dir, "present")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(path); err != nil {
		t.Fatal(err)
	}
	if Exists(path) {
		t.Fatal("file should be removed")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}
