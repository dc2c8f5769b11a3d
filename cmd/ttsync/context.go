package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ttsync/internal/config"
	"ttsync/internal/logging"
)

type commandContext struct {
	configFlag   *string
	gamedataFlag *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, gamedataFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		gamedataFlag: gamedataFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if gamedata := flagValue(c.gamedataFlag); gamedata != "" {
			expanded, err := config.ExpandPath(gamedata)
			if err != nil {
				c.configErr = fmt.Errorf("resolve --gamedata: %w", err)
				return
			}
			cfg.Paths.GamedataDir = expanded
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds the run logger; verbose forces debug output.
func (c *commandContext) logger(w io.Writer, verbose bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	view := *cfg
	if verbose {
		view.Logging.Level = "debug"
	}
	return logging.NewFromConfig(&view, w)
}

func flagValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
