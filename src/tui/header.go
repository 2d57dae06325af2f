package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Header shows what is being tailed and how much has arrived.
type Header struct {
	topic    string
	received int
	dropped  int
	paused   bool
	closed   bool
	styles   *StyleConfig
}

// NewHeader creates a header for topic
func NewHeader(topic string, styles *StyleConfig) Header {
	return Header{topic: topic, styles: styles}
}

// Render renders the header
func (h Header) Render(width int) string {
	title := h.styles.TitleStyle().Render(fmt.Sprintf("orderflow tail  %s", h.topic))

	stats := fmt.Sprintf("%d received", h.received)
	if h.dropped > 0 {
		stats += fmt.Sprintf(", %d undecodable", h.dropped)
	}
	statsView := lipgloss.NewStyle().
		Foreground(h.styles.TextSecondary).
		Padding(0, 2).
		Render(stats)

	state := "live"
	stateColor := h.styles.BuyColor
	switch {
	case h.closed:
		state, stateColor = "stream closed", h.styles.SellColor
	case h.paused:
		state, stateColor = "paused", h.styles.ErrorColor
	}
	stateView := lipgloss.NewStyle().Foreground(stateColor).Bold(true).Padding(0, 1).Render(state)

	left := lipgloss.JoinHorizontal(lipgloss.Left, title, statsView)
	gap := width - lipgloss.Width(left) - lipgloss.Width(stateView)
	if gap < 0 {
		gap = 0
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, left, spacer, stateView))
}
