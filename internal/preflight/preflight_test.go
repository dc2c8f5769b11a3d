package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ttsync/internal/config"
	"ttsync/internal/mtimes"
	"ttsync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCacheDirectories(t *testing.T) {
	gamedata := t.TempDir()
	if err := os.MkdirAll(filepath.Join(gamedata, "Mods", "Images"), 0o755); err != nil {
		t.Fatal(err)
	}
	results := CheckCacheDirectories(gamedata)
	if len(results) != 6 {
		t.Fatalf("expected 6 cache directories, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s failed: %s", r.Name, r.Detail)
		}
	}
	if !strings.Contains(results[0].Detail, "read/write ok") && !strings.Contains(results[0].Detail, "first fetch") {
		t.Fatalf("unexpected detail: %s", results[0].Detail)
	}
}

func TestCheckIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), mtimes.PrefetchIndexName)

	if r := CheckIndex(ctx, "index", path); !r.Passed {
		t.Fatalf("missing index should pass: %s", r.Detail)
	}

	idx, err := mtimes.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Close()
	if r := CheckIndex(ctx, "index", path); !r.Passed {
		t.Fatalf("fresh index should pass: %s", r.Detail)
	}

	if err := os.WriteFile(path, []byte("not a database"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckIndex(ctx, "index", path); r.Passed {
		t.Fatal("corrupt index should fail")
	}
}

func TestCheckEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "tts-backup" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if r := CheckEndpoint(context.Background(), srv.URL, "tts-backup"); !r.Passed {
		t.Fatalf("expected pass, got: %s", r.Detail)
	}
	if r := CheckEndpoint(context.Background(), srv.URL, "other"); r.Passed || !strings.Contains(r.Detail, "403") {
		t.Fatalf("expected 403 failure, got: %+v", r)
	}
	if r := CheckEndpoint(context.Background(), "", "x"); r.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, ""); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	results := RunAll(context.Background(), cfg, "")
	// gamedata, workshop, six cache dirs, output, two indexes
	if len(results) != 11 {
		t.Fatalf("expected 11 results, got %d", len(results))
	}
	if n := Failed(results); n != 0 {
		for _, r := range results {
			if !r.Passed {
				t.Errorf("check %q failed: %s", r.Name, r.Detail)
			}
		}
	}
}

func TestRunAll_IncludesProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.GamedataDir = t.TempDir()
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "missing")

	results := RunAll(context.Background(), &cfg, srv.URL)
	last := results[len(results)-1]
	if last.Name != "Asset host" || !last.Passed {
		t.Fatalf("unexpected probe result: %+v", last)
	}
	if Failed(results) < 2 {
		t.Fatalf("expected workshop and output directory failures, got %d", Failed(results))
	}
}
