package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type colAlign int

const (
	colLeft colAlign = iota
	colRight
)

// renderTable draws a rounded-style table. Short rows are padded to the
// header width, and the result ends with a newline so callers can Fprint it
// directly.
func renderTable(headers []string, rows [][]string, aligns []colAlign) string {
	if len(headers) == 0 {
		return ""
	}

	w := table.NewWriter()
	w.SetStyle(table.StyleRounded)
	w.AppendHeader(toRow(headers, len(headers)))
	for _, r := range rows {
		w.AppendRow(toRow(r, len(headers)))
	}
	w.SetColumnConfigs(columnConfigs(len(headers), aligns))
	return w.Render() + "\n"
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

func columnConfigs(columns int, aligns []colAlign) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, columns)
	for i := range configs {
		a := text.AlignLeft
		if i < len(aligns) && aligns[i] == colRight {
			a = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: a, AlignHeader: text.AlignLeft}
	}
	return configs
}
