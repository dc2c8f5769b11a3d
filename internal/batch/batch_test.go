package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ttsync/internal/logging"
	"ttsync/internal/mtimes"
	"ttsync/internal/testsupport"
)

func writeDocs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		testsupport.WriteDocument(t, dir, name, `{"SaveName":"x"}`)
	}
}

func collect(visited *[]string) Task {
	return func(ctx context.Context, path string) error {
		if _, ok := logging.RunIDFromContext(ctx); !ok {
			return errors.New("missing run id")
		}
		*visited = append(*visited, filepath.Base(path))
		return nil
	}
}

func TestResolveLooksUpWorkshopDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	local := filepath.Join(t.TempDir(), "local.json")
	testsupport.WriteFile(t, local, "{}")

	r := NewRunner(cfg, Options{}, logging.NewNop())
	defer r.Close()
	docs, err := r.Resolve(context.Background(), []string{local, "123.json"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if docs[0] != local || docs[1] != filepath.Join(cfg.WorkshopDir(), "123.json") {
		t.Fatalf("docs = %v", docs)
	}

	if _, err := r.Resolve(context.Background(), nil); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestRunAllSelectsOnlyChangedDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeDocs(t, cfg.WorkshopDir(), "1.json", "2.json", "WorkshopFileInfos.json")

	var visited []string
	r := NewRunner(cfg, Options{All: true, IndexName: mtimes.PrefetchIndexName}, logging.NewNop())
	summary, err := r.Run(context.Background(), []string{"Workshop"}, collect(&visited))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Join(visited, ",") != "1.json,2.json" || summary.Selected != 2 || len(summary.Processed) != 2 {
		t.Fatalf("visited = %v, summary = %+v", visited, summary)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(cfg.WorkshopDir(), mtimes.PrefetchIndexName)); err != nil {
		t.Fatalf("index not written beside documents: %v", err)
	}

	visited = nil
	again := NewRunner(cfg, Options{All: true}, logging.NewNop())
	defer again.Close()
	summary, err = again.Run(context.Background(), []string{cfg.WorkshopDir()}, collect(&visited))
	if err != nil {
		t.Fatal(err)
	}
	if len(visited) != 0 || summary.Selected != 0 {
		t.Fatalf("unchanged documents were selected again: %v", visited)
	}
}

func TestRunDryRunLeavesIndexAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeDocs(t, cfg.WorkshopDir(), "1.json")

	var visited []string
	r := NewRunner(cfg, Options{All: true, DryRun: true}, logging.NewNop())
	defer r.Close()
	if _, err := r.Run(context.Background(), []string{"Workshop"}, collect(&visited)); err != nil {
		t.Fatal(err)
	}
	if len(visited) != 1 {
		t.Fatalf("visited = %v", visited)
	}
	if _, err := os.Stat(filepath.Join(cfg.WorkshopDir(), mtimes.PrefetchIndexName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run created an index: %v", err)
	}
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeDocs(t, cfg.WorkshopDir(), "1.json", "2.json", "3.json")
	boom := errors.New("boom")

	var visited []string
	task := func(_ context.Context, path string) error {
		visited = append(visited, filepath.Base(path))
		if filepath.Base(path) == "2.json" {
			return boom
		}
		return nil
	}

	r := NewRunner(cfg, Options{All: true, IndexName: mtimes.BackupIndexName, IndexDir: cfg.Paths.OutputDir}, logging.NewNop())
	summary, err := r.Run(context.Background(), []string{"Workshop"}, task)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if strings.Join(visited, ",") != "1.json,2.json" || len(summary.Processed) != 1 {
		t.Fatalf("visited = %v, summary = %+v", visited, summary)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	idx := testsupport.MustOpenIndex(t, filepath.Join(cfg.Paths.OutputDir, mtimes.BackupIndexName))
	if _, ok, _ := idx.Get(context.Background(), "1.json"); !ok {
		t.Fatal("successful document was not recorded")
	}
	if _, ok, _ := idx.Get(context.Background(), "2.json"); ok {
		t.Fatal("failed document was recorded")
	}
}

func TestRunMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r := NewRunner(cfg, Options{All: true}, logging.NewNop())
	defer r.Close()
	_, err := r.Run(context.Background(), []string{"Nowhere"}, func(context.Context, string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "cannot find directory") {
		t.Fatalf("expected missing directory error, got %v", err)
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeDocs(t, cfg.WorkshopDir(), "1.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(cfg, Options{}, logging.NewNop())
	defer r.Close()
	_, err := r.Run(ctx, []string{"1.json"}, func(context.Context, string) error {
		t.Fatal("task ran after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
