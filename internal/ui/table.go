package ui

import (
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Table renders rows with tablewriter
type Table struct {
	headers []string
	rows    [][]string
	right   map[int]bool
}

// NewTable creates a table with the given headers
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, right: make(map[int]bool)}
}

// AlignRight right-aligns the given column indexes
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// Append adds a row
func (t *Table) Append(values ...string) {
	t.rows = append(t.rows, values)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w
func (t *Table) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	if len(t.right) > 0 {
		aligns := make([]int, len(t.headers))
		for i := range aligns {
			aligns[i] = tablewriter.ALIGN_LEFT
			if t.right[i] {
				aligns[i] = tablewriter.ALIGN_RIGHT
			}
		}
		table.SetColumnAlignment(aligns)
	}

	table.AppendBulk(t.rows)
	table.Render()
}

// StatusText colors a run status for table output
func StatusText(status string) string {
	if !supportsColor {
		return status
	}
	switch status {
	case "succeeded":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "running":
		return color.YellowString(status)
	default:
		return status
	}
}
