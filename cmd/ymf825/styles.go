package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var styles = struct {
	title  lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
	border lipgloss.Style
}{
	title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(6)),
	header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(3)).Padding(0, 1),
	cell:   lipgloss.NewStyle().Padding(0, 1),
	ok:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(2)),
	fail:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(1)),
	border: lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(8)),
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.header
			}
			return styles.cell
		}).
		Headers(headers...)
}
