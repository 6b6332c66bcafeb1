package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// Columns converts column definitions for the bubbles table.
func Columns(columns []TableColumn) []table.Column {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}
	return cols
}

// TableStyles returns the bubbles table styles used across the dashboard.
// focused controls whether the cursor row is highlighted.
func TableStyles(focused bool) table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	if focused {
		s.Selected = s.Selected.
			Foreground(ColorPrimary).
			Background(ColorSecondary).
			Bold(false)
	} else {
		s.Selected = s.Cell
	}
	return s
}

// NewTable creates a bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row, height int, focused bool) table.Model {
	if height <= 0 {
		height = len(rows) + 1
	}
	t := table.New(
		table.WithColumns(Columns(columns)),
		table.WithRows(rows),
		table.WithFocused(focused),
		table.WithHeight(height),
	)
	t.SetStyles(TableStyles(focused))
	return t
}

// RenderSimpleTable renders rows as fixed-width text for CLI output. Cells
// wider than their column are truncated with "…".
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	var sb strings.Builder
	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = header.Render(padRight(c.Title, c.Width))
	}
	sb.WriteString(strings.TrimRight(strings.Join(titles, " "), " "))
	sb.WriteString("\n")

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			var v string
			if i < len(row) {
				v = row[i]
			}
			cells[i] = padRight(Truncate(v, c.Width), c.Width)
		}
		sb.WriteString(strings.TrimRight(strings.Join(cells, " "), " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Truncate shortens s to width display cells, marking the cut with "…".
func Truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// padRight pads a string to the specified width.
func padRight(s string, width int) string {
	// Account for ANSI codes when calculating visible length
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
