package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderTable renders rows under headers in a rounded box. Columns listed in
// rightColumns (0-based) are right-aligned; everything else is left-aligned.
func renderTable(headers []string, rows [][]string, rightColumns ...int) string {
	if len(headers) == 0 {
		return ""
	}

	right := make(map[int]bool, len(rightColumns))
	for _, col := range rightColumns {
		right[col] = true
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	toRow := func(cells []string) table.Row {
		row := make(table.Row, len(headers))
		for i := range row {
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		return row
	}

	tw.AppendHeader(toRow(headers))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells))
	}

	var configs []table.ColumnConfig
	for col := range right {
		configs = append(configs, table.ColumnConfig{
			Number:      col + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
