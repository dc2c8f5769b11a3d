package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ttsync/internal/asset"
	"ttsync/internal/mtimes"
	"ttsync/internal/testsupport"
)

type cliTestEnv struct {
	configPath  string
	gamedataDir string
	outputDir   string
	workshopDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("TTSYNC_GAMEDATA", "")

	env := &cliTestEnv{
		configPath:  filepath.Join(base, "config.toml"),
		gamedataDir: filepath.Join(base, "gamedata"),
		outputDir:   filepath.Join(base, "backups"),
	}
	env.workshopDir = filepath.Join(env.gamedataDir, "Mods", "Workshop")
	for _, dir := range []string{env.workshopDir, env.outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	content := fmt.Sprintf("[paths]\ngamedata_dir = %q\noutput_dir = %q\n\n[fetch]\nretries = 0\n\n[logging]\nlevel = \"error\"\n",
		env.gamedataDir, env.outputDir)
	testsupport.WriteFile(t, env.configPath, content)
	return env
}

func (e *cliTestEnv) writeDocument(t *testing.T, name, body string) string {
	t.Helper()
	return testsupport.WriteDocument(t, e.workshopDir, name, body)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.gamedataDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestURLsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeDocument(t, "5.json", `{"SaveName": "Cards", "ObjectStates": [
		{"CustomMesh": {"MeshURL": "http://h/m.png", "DiffuseURL": "http://h/d.jpg"}}
	]}`)

	out, _, err := runCLI(t, []string{"urls", "--json", filepath.Join(env.workshopDir, "5.json")}, env.configPath)
	if err != nil {
		t.Fatalf("urls --json: %v", err)
	}
	var rows []referenceRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Kind != "mesh" || rows[0].Cache != "Mods/Models/httphmpng.obj" || rows[0].Cached {
		t.Fatalf("mesh row = %+v", rows[0])
	}
	if rows[1].Path != "ObjectStates/CustomMesh/DiffuseURL" {
		t.Fatalf("image row path = %q", rows[1].Path)
	}

	out, _, err = runCLI(t, []string{"urls", "--yaml", filepath.Join(env.workshopDir, "5.json")}, env.configPath)
	if err != nil {
		t.Fatalf("urls --yaml: %v", err)
	}
	requireContains(t, out, "cache_path: Mods/Models/httphmpng.obj")

	out, _, err = runCLI(t, []string{"urls", filepath.Join(env.workshopDir, "5.json")}, env.configPath)
	if err != nil {
		t.Fatalf("urls: %v", err)
	}
	requireContains(t, out, "Mods/Models/httphmpng.obj")
	requireContains(t, out, "2 references")
}

func TestPrefetchThenBackup(t *testing.T) {
	srv := testsupport.NewAssetServer(t, map[string]testsupport.Asset{
		"/board.png": {ContentType: "image/png", Body: "board"},
	})

	env := setupCLITestEnv(t)
	env.writeDocument(t, "11.json", fmt.Sprintf(`{"SaveName": "Board Game", "ObjectStates": [
		{"CustomImage": {"ImageURL": "%s/board.png"}}
	]}`, srv.URL))

	out, _, err := runCLI(t, []string{"prefetch", "--dry-run", "11.json"}, env.configPath)
	if err != nil {
		t.Fatalf("prefetch --dry-run: %v", err)
	}
	requireContains(t, out, "0 fetched")
	if n := srv.Requests(); n != 0 {
		t.Fatalf("dry run made %d requests", n)
	}
	if _, err := os.Stat(filepath.Join(env.workshopDir, mtimes.PrefetchIndexName)); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote the index: %v", err)
	}

	out, _, err = runCLI(t, []string{"prefetch", "11.json"}, env.configPath)
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	requireContains(t, out, "1 fetched")
	cached := filepath.Join(env.gamedataDir, "Mods", "Images", asset.Normalize(srv.URL+"/board.png")+".png")
	if data, err := os.ReadFile(cached); err != nil || string(data) != "board" {
		t.Fatalf("cached asset = %q, %v", data, err)
	}

	out, _, err = runCLI(t, []string{"prefetch", "--all", "Workshop"}, env.configPath)
	if err != nil {
		t.Fatalf("prefetch --all: %v", err)
	}
	requireContains(t, out, "No documents changed")
	if n := srv.Requests(); n != 1 {
		t.Fatalf("expected a single request overall, got %d", n)
	}

	out, _, err = runCLI(t, []string{"backup", "11.json"}, env.configPath)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	archive := filepath.Join(env.outputDir, "Board Game [11].zip")
	requireContains(t, out, archive)
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.outputDir, mtimes.BackupIndexName)); err != nil {
		t.Fatalf("backup index missing: %v", err)
	}

	custom := filepath.Join(t.TempDir(), "custom.zip")
	if _, _, err := runCLI(t, []string{"backup", "-o", custom, "-z", "11.json"}, env.configPath); err != nil {
		t.Fatalf("backup -o: %v", err)
	}
	if _, err := os.Stat(custom); err != nil {
		t.Fatalf("custom archive missing: %v", err)
	}
}

func TestBackupFailsOnMissingAsset(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeDocument(t, "12.json", `{"SaveName": "Broken", "ObjectStates": [
		{"CustomMesh": {"MeshURL": "http://h/never-fetched"}}
	]}`)

	if _, _, err := runCLI(t, []string{"backup", "12.json"}, env.configPath); err == nil {
		t.Fatal("expected missing asset to abort the backup")
	}

	out, _, err := runCLI(t, []string{"backup", "-i", "12.json"}, env.configPath)
	if err != nil {
		t.Fatalf("backup -i: %v", err)
	}
	requireContains(t, out, "Broken [12] (-1).zip")
	requireContains(t, out, "1 files missing")
}

func TestDoctorCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "All checks passed")

	if err := os.RemoveAll(env.outputDir); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail without an output directory")
	}
	requireContains(t, out, "[FAIL]")
}

func TestGamedataFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	other := t.TempDir()

	ctx := newCommandContext(&env.configPath, &other, nil)
	cfg, err := ctx.ensureConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.GamedataDir != other {
		t.Fatalf("gamedata = %q, want %q", cfg.Paths.GamedataDir, other)
	}
}
