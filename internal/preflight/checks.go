package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ttsync/internal/asset"
	"ttsync/internal/mtimes"
)

const probeTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckCacheDirectories reports each asset cache directory. A directory that
// does not exist yet passes when its parent is writable, since the first
// fetch creates it.
func CheckCacheDirectories(gamedata string) []Result {
	var results []Result
	for _, sub := range asset.Subdirs() {
		dir := filepath.Join(gamedata, filepath.FromSlash(sub))
		name := "Cache " + sub
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			parent := filepath.Dir(dir)
			for {
				if _, statErr := os.Stat(parent); statErr == nil || parent == filepath.Dir(parent) {
					break
				}
				parent = filepath.Dir(parent)
			}
			if accessErr := unix.Access(parent, unix.W_OK|unix.X_OK); accessErr != nil {
				results = append(results, Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot be created: %v)", dir, accessErr)})
				continue
			}
			results = append(results, Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first fetch)", dir)})
			continue
		}
		results = append(results, CheckDirectoryAccess(name, dir))
	}
	return results
}

// CheckIndex verifies that an existing timestamp index opens with the
// current schema. A missing index passes.
func CheckIndex(ctx context.Context, name, path string) Result {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
	}
	idx, err := mtimes.Open(ctx, path)
	if err != nil {
		if errors.Is(err, mtimes.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: written by an incompatible version; delete it)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	_ = idx.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (ok)", path)}
}

// CheckEndpoint verifies that an asset host answers a GET with the configured
// user agent.
func CheckEndpoint(ctx context.Context, rawURL, userAgent string) Result {
	const name = "Asset host"

	target := strings.TrimSpace(rawURL)
	if target == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	client := &http.Client{Timeout: probeTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Result{Name: name, Detail: fmt.Sprintf("%s (HTTP %d)", target, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", target)}
}

func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return err.Error()
}
