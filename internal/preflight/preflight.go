package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"ttsync/internal/config"
	"ttsync/internal/mtimes"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the preflight checks for cfg. The asset host check runs
// only when probeURL is set.
func RunAll(ctx context.Context, cfg *config.Config, probeURL string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Gamedata directory", cfg.Paths.GamedataDir))
	results = append(results, CheckDirectoryReadable("Workshop directory", cfg.WorkshopDir()))
	results = append(results, CheckCacheDirectories(cfg.Paths.GamedataDir)...)
	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results,
		CheckIndex(ctx, "Prefetch index", filepath.Join(cfg.WorkshopDir(), mtimes.PrefetchIndexName)),
		CheckIndex(ctx, "Backup index", filepath.Join(cfg.Paths.OutputDir, mtimes.BackupIndexName)),
	)

	if strings.TrimSpace(probeURL) != "" {
		results = append(results, CheckEndpoint(ctx, probeURL, cfg.Fetch.UserAgent))
	}
	return results
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
