package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var gamedataFlag string
	var logLevelFlag string

	ctx := newCommandContext(&configFlag, &gamedataFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "ttsync",
		Short:         "Tabletop Simulator asset cache sync and backup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&gamedataFlag, "gamedata", "", "Tabletop Simulator data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(newPrefetchCommand(ctx))
	rootCmd.AddCommand(newBackupCommand(ctx))
	rootCmd.AddCommand(newURLsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}
