package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	gamedata := strings.TrimSpace(c.Paths.GamedataDir)
	if value, ok := os.LookupEnv(gamedataEnv); ok && strings.TrimSpace(value) != "" {
		gamedata = strings.TrimSpace(value)
	}
	if gamedata == "" {
		gamedata = DefaultGamedataDir()
	}

	var err error
	if c.Paths.GamedataDir, err = expandPath(gamedata); err != nil {
		return fmt.Errorf("paths.gamedata_dir: %w", err)
	}
	redirect, err := readModLocation(c.Paths.GamedataDir)
	if err != nil {
		return fmt.Errorf("paths.gamedata_dir: %w", err)
	}
	if redirect != "" {
		if c.Paths.GamedataDir, err = expandPath(redirect); err != nil {
			return fmt.Errorf("paths.gamedata_dir (%s): %w", modLocationFile, err)
		}
	}

	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

// readModLocation returns the first non-empty line of mod_location.txt in dir.
func readModLocation(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, modLocationFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", modLocationFile, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}

func (c *Config) normalizeFetch() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = defaultTimeoutSeconds
	}
	c.Backup.Comment = strings.TrimSpace(c.Backup.Comment)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
