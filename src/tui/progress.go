package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerTickMsg triggers spinner animation frame advance
type SpinnerTickMsg time.Time

// ProgressModel is the waiting indicator shown until the first order arrives.
type ProgressModel struct {
	label        string
	spinnerFrame int
	done         bool
}

// NewProgressModel creates a spinner with label.
func NewProgressModel(label string) ProgressModel {
	return ProgressModel{label: label}
}

// SpinnerTick returns a command that sends SpinnerTickMsg after a delay
func SpinnerTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return SpinnerTickMsg(t)
	})
}

// Stop ends the animation; the next tick is not rescheduled.
func (m *ProgressModel) Stop() {
	m.done = true
}

func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	if _, ok := msg.(SpinnerTickMsg); ok && !m.done {
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, SpinnerTick()
	}
	return m, nil
}

func (m ProgressModel) View() string {
	spinner := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Render(spinnerFrames[m.spinnerFrame])
	return fmt.Sprintf("%s %s", spinner, m.label)
}
