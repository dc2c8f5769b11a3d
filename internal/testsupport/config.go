package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ttsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The gamedata Workshop directory and the output directory exist on return.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.GamedataDir = filepath.Join(base, "gamedata")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Fetch.Retries = 0
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{builder.cfg.WorkshopDir(), builder.cfg.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithIgnoreMissing enables archiving with missing sources.
func WithIgnoreMissing() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backup.IgnoreMissing = true
	}
}

// WithComment sets the archive manifest comment.
func WithComment(comment string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backup.Comment = comment
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.GamedataDir)
}
