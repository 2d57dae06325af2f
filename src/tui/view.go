package tui

import (
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var orderColumns = []table.Column{
	{Title: "Time", Width: 8},
	{Title: "Order", Width: 14},
	{Title: "Symbol", Width: 8},
	{Title: "Side", Width: 4},
	{Title: "Qty", Width: 8},
	{Title: "Price", Width: 12},
	{Title: "P/Offset", Width: 10},
}

// View is the table of received orders, newest first.
type View struct {
	table table.Model
}

// NewView creates an empty order table
func NewView(styles *StyleConfig) View {
	t := table.New(
		table.WithColumns(orderColumns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.BorderColor).
		BorderBottom(true).
		Foreground(styles.PrimaryBlue).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(styles.TextPrimary).
		Background(styles.SelectedColor).
		Bold(false)
	t.SetStyles(s)

	return View{table: t}
}

// Update forwards navigation keys to the table
func (v View) Update(msg tea.Msg) (View, tea.Cmd) {
	var cmd tea.Cmd
	v.table, cmd = v.table.Update(msg)
	return v, cmd
}

// SetSize sets the table dimensions
func (v *View) SetSize(width, height int) {
	v.table.SetWidth(width)
	v.table.SetHeight(height)
}

// SetRows replaces the table contents.
func (v *View) SetRows(rows []OrderRow) {
	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		cells := r.cells()
		for c := range cells {
			cells[c] = Truncate(cells[c], orderColumns[c].Width, true)
		}
		tableRows[i] = table.Row(cells)
	}
	v.table.SetRows(tableRows)
	if n := len(tableRows); n > 0 {
		if c := v.table.Cursor(); c < 0 || c >= n {
			v.table.SetCursor(min(max(c, 0), n-1))
		}
	}
}

// Cursor returns the index of the selected row.
func (v View) Cursor() int {
	return v.table.Cursor()
}

// Render returns the string representation of the view
func (v View) Render() string {
	return v.table.View()
}
