package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ttsync/internal/asset"
	"ttsync/internal/savefile"
)

const urlColumnWidth = 72

type referenceRow struct {
	Path   string `json:"path" yaml:"path"`
	URL    string `json:"url" yaml:"url"`
	Kind   string `json:"kind" yaml:"kind"`
	Cache  string `json:"cache_path,omitempty" yaml:"cache_path,omitempty"`
	Cached bool   `json:"cached" yaml:"cached"`
}

func newURLsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "urls FILE",
		Short: "List the asset references of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asYAML {
				return errors.New("--json and --yaml are mutually exclusive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			doc, err := savefile.Load(args[0])
			if err != nil {
				return err
			}

			cache := asset.NewCache(cfg.Paths.GamedataDir)
			rows, err := referenceRows(cache, doc)
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				return writeJSON(cmd, rows)
			case asYAML:
				return writeYAML(cmd, rows)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No asset references found")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{row.Kind, row.URL, row.Cache, yesNo(row.Cached)})
			}
			columns := []tableColumn{
				{Header: "Kind"},
				{Header: "URL", MaxWidth: urlColumnWidth},
				{Header: "Cache path", MaxWidth: urlColumnWidth},
				{Header: "Cached"},
			}
			caption := fmt.Sprintf("%s [%s]: %d references", args[0], doc.SaveName(), len(rows))
			fmt.Fprintln(out, renderTable(columns, table, caption))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output as YAML")
	return cmd
}

func referenceRows(cache *asset.Cache, doc *savefile.Document) ([]referenceRow, error) {
	rows := []referenceRow{}
	for ref, err := range doc.References() {
		if err != nil {
			return nil, err
		}
		kind, err := asset.Classify(ref.Path)
		if err != nil {
			return nil, err
		}
		row := referenceRow{Path: strings.Join(ref.Path, "/"), URL: ref.URL, Kind: kind.String()}
		if rel, ok := cache.Resolve(kind, ref.URL); ok {
			row.Cache = rel
			row.Cached = !asset.Pending(rel) && cache.Exists(rel)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
