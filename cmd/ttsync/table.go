package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableColumn describes one rendered column.
type tableColumn struct {
	Header   string
	AlignEnd bool
	// MaxWidth trims longer cells; zero leaves them whole.
	MaxWidth int
}

func renderTable(columns []tableColumn, rows [][]string, caption string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.Header
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if col.AlignEnd {
			configs[i].Align = text.AlignRight
		}
		if col.MaxWidth > 0 {
			configs[i].WidthMax = col.MaxWidth
			configs[i].WidthMaxEnforcer = text.Trim
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	if caption != "" {
		tw.SetCaption(caption)
	}
	return tw.Render()
}
