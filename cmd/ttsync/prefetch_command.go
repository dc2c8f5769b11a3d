package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ttsync/internal/asset"
	"ttsync/internal/batch"
	"ttsync/internal/fetch"
	"ttsync/internal/mtimes"
	"ttsync/internal/savefile"
)

func newPrefetchCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var dryRun bool
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "prefetch FILE...",
		Short: "Download assets referenced by save files into the cache",
		Long: `Download every asset referenced by the given save files or workshop mods
that is not already in the Tabletop Simulator cache.

A FILE that does not exist is looked up in <gamedata>/Mods/Workshop. With
--all each argument is a directory (looked up in <gamedata>/Mods when it does
not exist) and only documents modified since their last prefetch are
processed. Assets that cannot be fetched are listed in a
"<id> [<name>] missing.txt" report next to the document.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			view := *cfg
			if err := flags.apply(cmd.Flags(), &view); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}

			engine := fetch.New(asset.NewCache(view.Paths.GamedataDir), fetchOptions(&view, dryRun), logger)
			runner := batch.NewRunner(&view, batch.Options{
				All:       all,
				DryRun:    dryRun,
				IndexName: mtimes.PrefetchIndexName,
			}, logger)
			defer runner.Close()

			out := cmd.OutOrStdout()
			summary, err := runner.Run(cmd.Context(), args, func(runCtx context.Context, path string) error {
				doc, err := savefile.Load(path)
				if err != nil {
					return err
				}
				result, err := engine.Prefetch(runCtx, doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s [%s]: %d fetched, %d skipped, %d missing\n",
					path, result.SaveName, result.Succeeded, result.Skipped, len(result.Missing))
				if result.ReportPath != "" {
					fmt.Fprintf(out, "  missing assets listed in %s\n", result.ReportPath)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if all && summary.Selected == 0 {
				fmt.Fprintln(out, "No documents changed since the last prefetch")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Treat arguments as directories and prefetch changed documents")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Only report which assets would be fetched")
	flags.register(cmd.Flags())
	return cmd
}
