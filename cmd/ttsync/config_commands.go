package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ttsync/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(targetPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
			} else if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("check config path: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintf(out, "Set paths.gamedata_dir if your game data is not in %s\n", config.DefaultGamedataDir())
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// configTarget resolves the --path value, defaulting to the per-user config file.
func configTarget(pathFlag string) (string, error) {
	if target := strings.TrimSpace(pathFlag); target != "" {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	target, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(flagValue(ctx.configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Gamedata directory: %s\n", cfg.Paths.GamedataDir)
			fmt.Fprintf(out, "Output directory: %s\n", cfg.Paths.OutputDir)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
