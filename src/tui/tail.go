// Package tui renders a live view of the orders arriving on the topic.
package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"orderflow/src/broker"
	"orderflow/src/sanitize"
	"orderflow/src/subscriber"
)

// DefaultMaxRows is how many orders the tail view keeps.
const DefaultMaxRows = 500

// OrderMsg delivers one received order to the model.
type OrderMsg struct {
	Row OrderRow
}

// StreamClosedMsg reports that no more orders will arrive.
type StreamClosedMsg struct{}

// TailModel is the Bubble Tea model of `orderflow tail`.
type TailModel struct {
	source   <-chan OrderRow
	rows     []OrderRow // newest first
	pending  []OrderRow // received while paused
	maxRows  int
	view     View
	header   Header
	progress ProgressModel
	styles   *StyleConfig
	paused   bool
	width    int
	height   int
}

// NewTailModel creates a model reading rows from source. source may be nil
// when rows are sent to the program directly.
func NewTailModel(topic string, source <-chan OrderRow, maxRows int) TailModel {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	styles := DefaultStyles()
	return TailModel{
		source:   source,
		maxRows:  maxRows,
		view:     NewView(styles),
		header:   NewHeader(topic, styles),
		progress: NewProgressModel("Waiting for orders on " + topic),
		styles:   styles,
	}
}

// Init starts the spinner and the first read from the source.
func (m TailModel) Init() tea.Cmd {
	return tea.Batch(SpinnerTick(), waitForOrder(m.source))
}

func waitForOrder(source <-chan OrderRow) tea.Cmd {
	if source == nil {
		return nil
	}
	return func() tea.Msg {
		row, ok := <-source
		if !ok {
			return StreamClosedMsg{}
		}
		return OrderMsg{Row: row}
	}
}

// Update handles messages and updates the model state.
func (m TailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case OrderMsg:
		m.header.received++
		if msg.Row.DecodeErr != nil {
			m.header.dropped++
		}
		if m.paused {
			m.pending = append(m.pending, msg.Row)
		} else {
			m.add(msg.Row)
		}
		return m, waitForOrder(m.source)

	case StreamClosedMsg:
		m.header.closed = true
		m.progress.Stop()
		return m, nil

	case SpinnerTickMsg:
		if len(m.rows) > 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p", " ":
			m.paused = !m.paused
			m.header.paused = m.paused
			if !m.paused {
				for _, row := range m.pending {
					m.add(row)
				}
				m.pending = nil
			}
			return m, nil
		case "c":
			m.rows = nil
			m.pending = nil
			m.view.SetRows(nil)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *TailModel) add(row OrderRow) {
	m.rows = append([]OrderRow{row}, m.rows...)
	if len(m.rows) > m.maxRows {
		m.rows = m.rows[:m.maxRows]
	}
	m.view.SetRows(m.rows)
}

// resize gives the table what is left after header, detail panel and help.
func (m *TailModel) resize() {
	tableHeight := m.height - 10
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.view.SetSize(m.width, tableHeight)
}

// Selected returns the highlighted row.
func (m TailModel) Selected() (OrderRow, bool) {
	i := m.view.Cursor()
	if i < 0 || i >= len(m.rows) {
		return OrderRow{}, false
	}
	return m.rows[i], true
}

// View renders the tail view.
func (m TailModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	sections := []string{m.header.Render(m.width)}
	if len(m.rows) == 0 {
		sections = append(sections, "", m.progress.View())
	} else {
		sections = append(sections, m.view.Render(), m.renderDetail())
	}
	sections = append(sections, m.styles.HelpStyle().Render("↑/↓ select • p pause • c clear • q quit"))

	lines := strings.Split(strings.Join(sections, "\n"), "\n")
	for i, line := range lines {
		lines[i] = ansi.Truncate(line, m.width, "")
	}
	return strings.Join(lines, "\n")
}

func (m TailModel) renderDetail() string {
	row, ok := m.Selected()
	if !ok {
		return ""
	}

	inner := m.width - 6
	var lines []string
	if row.DecodeErr != nil {
		lines = append(lines, "key="+row.Key+"  "+row.Position(),
			m.styles.SideStyle("").Foreground(m.styles.ErrorColor).Render(row.DecodeErr.Error()))
	} else {
		lines = append(lines, row.Event.OrderID+"  "+m.styles.SideStyle(row.Event.Side).Render(row.Event.Side)+
			"  "+row.Event.Symbol+"  partition/offset "+row.Position())
	}
	lines = append(lines, Wrap(row.Payload, inner))
	return m.styles.DetailStyle().Render(strings.Join(lines, "\n"))
}

// Feed returns a subscriber handler that turns records into rows on out.
// It blocks while out is full so the view applies back-pressure to its group
// member rather than dropping orders.
func Feed(out chan<- OrderRow) subscriber.Handler {
	return func(ctx context.Context, msg broker.Message) error {
		row := OrderRow{
			Key:       sanitize.Line(msg.Key),
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Payload:   sanitize.Payload(msg.Value),
			Received:  time.Now(),
		}
		row.Event, row.DecodeErr = subscriber.DecodeOrder(msg)
		row.Event.OrderID = sanitize.Line(row.Event.OrderID)
		row.Event.Symbol = sanitize.Line(row.Event.Symbol)
		row.Event.Side = sanitize.Line(row.Event.Side)

		select {
		case out <- row:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Start runs the tail view until the user quits.
func Start(topic string, source <-chan OrderRow) error {
	p := tea.NewProgram(NewTailModel(topic, source, DefaultMaxRows), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
