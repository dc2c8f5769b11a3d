package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ttsync/internal/archive"
	"ttsync/internal/backup"
	"ttsync/internal/batch"
	"ttsync/internal/mtimes"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	var (
		all           bool
		outName       string
		dryRun        bool
		ignoreMissing bool
		comment       string
		deflate       bool
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "backup FILE",
		Short: "Archive a mod together with its cached assets",
		Long: `Write a zip archive holding a save file or workshop mod, its thumbnail and
every cached asset it references.

The archive is named "<save name> [<id>].zip" in the output directory unless
--outname names a file; an existing directory given to --outname receives the
default name. When assets are missing and --ignore-missing is set, the archive
lists them in missing.txt and its name gains a " (-N)" suffix. With --all FILE
is a directory and only mods changed since their last backup are archived.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			view := *cfg
			flags := cmd.Flags()
			if flags.Changed("ignore-missing") {
				view.Backup.IgnoreMissing = ignoreMissing
			}
			if flags.Changed("deflate") {
				view.Backup.Deflate = deflate
			}
			if flags.Changed("comment") {
				view.Backup.Comment = comment
			}

			outDir, name, err := backup.SplitOutput(outName)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = view.Paths.OutputDir
			}
			if all {
				name = ""
			}

			logger, err := ctx.logger(cmd.ErrOrStderr(), verbose)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			runner := batch.NewRunner(&view, batch.Options{
				All:       all,
				DryRun:    dryRun,
				IndexName: mtimes.BackupIndexName,
				IndexDir:  outDir,
			}, logger)
			defer runner.Close()

			summary, err := runner.Run(cmd.Context(), args, func(runCtx context.Context, path string) error {
				opts := backup.Options{OutputDir: outDir, OutputName: name, DryRun: dryRun}
				if !verbose && isTerminal(out) {
					opts.Progress = newBarProgress(out)
				}
				result, err := backup.Run(runCtx, &view, path, opts, logger)
				if err != nil {
					return err
				}
				if result.DryRun {
					fmt.Fprintf(out, "Dry run for %s completed (%d entries, %d missing)\n", path, result.Entries, len(result.Missing))
					return nil
				}
				fmt.Fprintf(out, "Backed up %s to %s\n", filepath.Base(path), result.Archive)
				if len(result.Missing) > 0 {
					fmt.Fprintf(out, "  %d files missing; see %s inside the archive\n", len(result.Missing), archive.MissingListName)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if all && summary.Selected == 0 {
				fmt.Fprintln(out, "No mods changed since the last backup")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Back up every changed mod in the directory FILE")
	cmd.Flags().StringVarP(&outName, "outname", "o", "", "Archive file name, or output directory")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Only report which files would be archived")
	cmd.Flags().BoolVarP(&ignoreMissing, "ignore-missing", "i", false, "Do not abort when cached files are missing")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "Comment stored in the archive manifest")
	cmd.Flags().BoolVarP(&deflate, "deflate", "z", false, "Compress archive entries")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every archived file; disables the progress bar")
	return cmd
}
