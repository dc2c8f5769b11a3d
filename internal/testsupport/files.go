package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteDocument writes a save document named name into dir and returns its path.
func WriteDocument(t testing.TB, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteFile(t, path, body)
	return path
}
