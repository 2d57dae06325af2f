package tui

import "github.com/charmbracelet/lipgloss"

// StyleConfig holds the colors of the tail view.
type StyleConfig struct {
	PrimaryBlue    lipgloss.Color
	DarkBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color
	BuyColor       lipgloss.Color
	SellColor      lipgloss.Color
	ErrorColor     lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		BuyColor:       lipgloss.Color("#34A853"),
		SellColor:      lipgloss.Color("#EA4335"),
		ErrorColor:     lipgloss.Color("#FBBC04"),
	}
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// DetailStyle returns the style of the selected order's panel.
func (s *StyleConfig) DetailStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextPrimary).
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.BorderColor)
}

// SideStyle colors an order side.
func (s *StyleConfig) SideStyle(side string) lipgloss.Style {
	switch side {
	case "BUY":
		return lipgloss.NewStyle().Foreground(s.BuyColor).Bold(true)
	case "SELL":
		return lipgloss.NewStyle().Foreground(s.SellColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(s.TextSecondary)
	}
}
