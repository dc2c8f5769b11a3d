package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.GamedataDir) == "" {
		return errors.New("paths.gamedata_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return errors.New("fetch.timeout_seconds must be positive")
	}
	if c.Fetch.Retries < 0 {
		return errors.New("fetch.retries must be >= 0")
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		return errors.New("fetch.user_agent must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
