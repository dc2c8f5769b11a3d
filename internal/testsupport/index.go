package testsupport

import (
	"context"
	"testing"

	"ttsync/internal/mtimes"
)

// MustOpenIndex opens a timestamp index for tests and registers cleanup.
func MustOpenIndex(t testing.TB, path string) *mtimes.Index {
	t.Helper()

	idx, err := mtimes.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("mtimes.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = idx.Close()
	})
	return idx
}
