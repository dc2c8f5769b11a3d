package backup_test

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ttsync/internal/asset"
	"ttsync/internal/backup"
	"ttsync/internal/faults"
	"ttsync/internal/fetch"
	"ttsync/internal/logging"
	"ttsync/internal/savefile"
	"ttsync/internal/testsupport"
)

type recordingProgress struct {
	title   string
	total   int
	entries []string
	done    bool
}

func (p *recordingProgress) Start(title string, total int) { p.title, p.total = title, total }
func (p *recordingProgress) Entry(name string, _ bool)     { p.entries = append(p.entries, name) }
func (p *recordingProgress) Finish()                       { p.done = true }

func readZip(t *testing.T, path string) (map[string]string, string) {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer r.Close()
	out := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = string(data)
	}
	return out, r.Comment
}

func TestRunWithMissingAssetSuffixesArchive(t *testing.T) {
	srv := testsupport.NewAssetServer(t, map[string]testsupport.Asset{
		"/a.png": {ContentType: "image/png", Body: "png-a"},
		"/b.jpg": {ContentType: "image/jpeg", Body: "jpg-b"},
	})
	cfg := testsupport.NewConfig(t, testsupport.WithIgnoreMissing(), testsupport.WithComment("nightly"))

	docPath := filepath.Join(cfg.WorkshopDir(), "777.json")
	testsupport.WriteFile(t, docPath, fmt.Sprintf(`{
		"SaveName": "Chess: Deluxe",
		"ObjectStates": [
			{"CustomImage": {"ImageURL": "%[1]s/a.png"}},
			{"CustomImage": {"ImageURL": "%[1]s/b.jpg"}},
			{"CustomImage": {"ImageURL": "%[1]s/gone"}}
		]
	}`, srv.URL))
	testsupport.WriteFile(t, filepath.Join(cfg.WorkshopDir(), "777.png"), "thumb")

	doc, err := savefile.Load(docPath)
	if err != nil {
		t.Fatal(err)
	}
	engine := fetch.New(asset.NewCache(cfg.Paths.GamedataDir), fetch.Options{}, logging.NewNop())
	prefetched, err := engine.Prefetch(context.Background(), doc)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if prefetched.Succeeded != 2 || len(prefetched.Missing) != 1 {
		t.Fatalf("prefetch result = %+v", prefetched)
	}

	stale := filepath.Join(cfg.Paths.OutputDir, "Chess- Deluxe [777] (-4).zip")
	testsupport.WriteFile(t, stale, "old")

	progress := &recordingProgress{}
	result, err := backup.Run(context.Background(), cfg, docPath, backup.Options{
		Revision: "test-rev",
		Progress: progress,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := filepath.Join(cfg.Paths.OutputDir, "Chess- Deluxe [777] (-1).zip")
	if result.Archive != want {
		t.Fatalf("archive = %q, want %q", result.Archive, want)
	}
	if len(result.Missing) != 1 {
		t.Fatalf("missing = %v", result.Missing)
	}
	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale archive should be removed, stat err = %v", err)
	}

	entries, comment := readZip(t, want)
	stemA := asset.Normalize(srv.URL + "/a.png")
	stemB := asset.Normalize(srv.URL + "/b.jpg")
	for _, name := range []string{
		"Mods/Images/" + stemA + ".png",
		"Mods/Images/" + stemB + ".jpg",
		"Mods/Workshop/777.json",
		"Mods/Workshop/777.png",
		"missing.txt",
	} {
		if _, ok := entries[name]; !ok {
			t.Fatalf("archive lacks %s; have %v", name, entries)
		}
	}
	if got := entries["Mods/Images/"+stemA+".png"]; got != "png-a" {
		t.Fatalf("image content = %q", got)
	}
	if !strings.Contains(entries["missing.txt"], asset.Normalize(srv.URL+"/gone")) {
		t.Fatalf("missing.txt = %q", entries["missing.txt"])
	}

	var manifest map[string]any
	if err := json.Unmarshal([]byte(comment), &manifest); err != nil {
		t.Fatalf("manifest comment: %v", err)
	}
	if manifest["script_revision"] != "test-rev" || manifest["comment"] != "nightly" {
		t.Fatalf("manifest = %v", manifest)
	}
	if _, ok := manifest["export_date"]; !ok {
		t.Fatalf("manifest lacks export_date: %v", manifest)
	}

	if progress.total != 5 || len(progress.entries) != 5 || !progress.done {
		t.Fatalf("progress = %+v", progress)
	}
	if progress.title != "777.json [Chess: Deluxe]" {
		t.Fatalf("progress title = %q", progress.title)
	}
}

func TestRunAbortsOnMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	docPath := filepath.Join(cfg.WorkshopDir(), "9.json")
	testsupport.WriteFile(t, docPath, `{"SaveName": "X", "ObjectStates": [{"CustomMesh": {"MeshURL": "http://example.invalid/m"}}]}`)

	_, err := backup.Run(context.Background(), cfg, docPath, backup.Options{}, logging.NewNop())
	if !errors.Is(err, faults.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
	leftovers, _ := os.ReadDir(cfg.Paths.OutputDir)
	if len(leftovers) != 0 {
		t.Fatalf("output dir should be empty, has %d entries", len(leftovers))
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithIgnoreMissing())
	docPath := filepath.Join(cfg.WorkshopDir(), "9.json")
	testsupport.WriteFile(t, docPath, `{"SaveName": "X", "ObjectStates": [{"CustomMesh": {"MeshURL": "http://example.invalid/m"}}]}`)

	out := filepath.Join(t.TempDir(), "nested")
	result, err := backup.Run(context.Background(), cfg, docPath, backup.Options{DryRun: true, OutputDir: out}, logging.NewNop())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.DryRun || result.Archive != filepath.Join(out, "X [9] (-1).zip") {
		t.Fatalf("result = %+v", result)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run created output directory: %v", err)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	docPath := filepath.Join(cfg.WorkshopDir(), "9.json")
	testsupport.WriteFile(t, docPath, `{"SaveName": "X"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := backup.Run(ctx, cfg, docPath, backup.Options{}, logging.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPlanFallsBackToNormalizedURL(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(t.TempDir(), "42.json")
	testsupport.WriteFile(t, docPath, `{"LuaScript": "x = 'http://pastebin.com/raw/abc'", "ObjectStates": [
		{"CustomMesh": {"MeshURL": "http://h/m.png"}},
		{"CustomMesh": {"MeshURL": "http://h/m.png"}}
	]}`)
	doc, err := savefile.Load(docPath)
	if err != nil {
		t.Fatal(err)
	}

	entries, err := backup.Plan(asset.NewCache(root), doc)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{
		"httppastebincomrawabc",
		"Mods/Models/httphmpng.obj",
		"Mods/Workshop/42.json",
	}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	if entries[1].Source != filepath.Join(root, "Mods", "Models", "httphmpng.obj") {
		t.Fatalf("source = %q", entries[1].Source)
	}
}

func TestDefaultArchiveName(t *testing.T) {
	dir := t.TempDir()
	named := filepath.Join(dir, "1.json")
	testsupport.WriteFile(t, named, `{"SaveName": "A/B: C?"}`)
	unnamed := filepath.Join(dir, "2.json")
	testsupport.WriteFile(t, unnamed, `{"ObjectStates": []}`)

	for path, want := range map[string]string{
		named:   "A-B- C- [1].zip",
		unnamed: "2 [2].zip",
	} {
		doc, err := savefile.Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if got := backup.DefaultArchiveName(doc); got != want {
			t.Errorf("DefaultArchiveName(%s) = %q, want %q", filepath.Base(path), got, want)
		}
	}
}

func TestSplitOutput(t *testing.T) {
	dir := t.TempDir()

	gotDir, gotName, err := backup.SplitOutput(dir)
	if err != nil || gotDir != dir || gotName != "" {
		t.Fatalf("directory: %q %q %v", gotDir, gotName, err)
	}

	file := filepath.Join(dir, "custom.zip")
	gotDir, gotName, err = backup.SplitOutput(file)
	if err != nil || gotDir != dir || gotName != "custom.zip" {
		t.Fatalf("file: %q %q %v", gotDir, gotName, err)
	}

	gotDir, gotName, err = backup.SplitOutput("  ")
	if err != nil || gotDir != "" || gotName != "" {
		t.Fatalf("empty: %q %q %v", gotDir, gotName, err)
	}
}
