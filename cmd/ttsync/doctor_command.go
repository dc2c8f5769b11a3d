package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ttsync/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var probeURL string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, indexes and (optionally) an asset host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)

			results := preflight.RunAll(cmd.Context(), cfg, probeURL)
			for _, r := range results {
				fmt.Fprintln(out, renderCheck(r, colorize))
			}
			if failed := preflight.Failed(results); failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}

	cmd.Flags().StringVar(&probeURL, "probe", "", "Also check that this URL can be fetched")
	return cmd
}

func renderCheck(r preflight.Result, colorize bool) string {
	status, color := "OK", ansiGreen
	if !r.Passed {
		status, color = "FAIL", ansiRed
	}
	line := fmt.Sprintf("  %-28s [%s] %s", r.Name+":", status, r.Detail)
	if colorize {
		return color + line + ansiReset
	}
	return line
}
