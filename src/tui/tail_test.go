package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"orderflow/src/broker"
	"orderflow/src/contracts"
)

func sampleRow(id string, offset int64) OrderRow {
	return OrderRow{
		Event:     contracts.OrderEvent{OrderID: id, Symbol: "AAPL", Side: contracts.SideBuy, Qty: 10, Price: 188.25},
		Key:       id,
		Partition: 1,
		Offset:    offset,
		Payload:   fmt.Sprintf(`{"order_id":%q,"symbol":"AAPL","side":"BUY","qty":10,"price":188.25}`, id),
		Received:  time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func sized(m TailModel) TailModel {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(TailModel)
}

func send(m TailModel, msg tea.Msg) TailModel {
	updated, _ := m.Update(msg)
	return updated.(TailModel)
}

func TestTailModel_Initializing(t *testing.T) {
	model := NewTailModel(contracts.TopicOrders, nil, 0)
	if view := model.View(); view != "Initializing..." {
		t.Errorf("expected initializing message, got %q", view)
	}
}

func TestTailModel_WaitingForOrders(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))

	view := model.View()
	if !strings.Contains(view, "Waiting for orders on orders.v1") {
		t.Errorf("expected waiting message, got:\n%s", view)
	}
}

func TestTailModel_NewestFirst(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))
	model = send(model, OrderMsg{Row: sampleRow("o-1", 0)})
	model = send(model, OrderMsg{Row: sampleRow("o-2", 1)})

	if len(model.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(model.rows))
	}
	if model.rows[0].Event.OrderID != "o-2" {
		t.Errorf("expected newest order first, got %s", model.rows[0].Event.OrderID)
	}

	view := model.View()
	for _, want := range []string{"o-1", "o-2", "2 received", "1/1"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestTailModel_MaxRows(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 3))
	for i := 0; i < 5; i++ {
		model = send(model, OrderMsg{Row: sampleRow(fmt.Sprintf("o-%d", i), int64(i))})
	}

	if len(model.rows) != 3 {
		t.Fatalf("expected 3 rows kept, got %d", len(model.rows))
	}
	if model.rows[2].Event.OrderID != "o-2" {
		t.Errorf("expected oldest kept row o-2, got %s", model.rows[2].Event.OrderID)
	}
	if model.header.received != 5 {
		t.Errorf("expected 5 received, got %d", model.header.received)
	}
}

func TestTailModel_PauseBuffersRows(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))
	model = send(model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	model = send(model, OrderMsg{Row: sampleRow("o-1", 0)})

	if len(model.rows) != 0 {
		t.Errorf("expected no rows while paused, got %d", len(model.rows))
	}
	if !strings.Contains(model.View(), "paused") {
		t.Error("expected paused state in header")
	}

	model = send(model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if len(model.rows) != 1 || len(model.pending) != 0 {
		t.Errorf("expected pending rows flushed on resume, rows=%d pending=%d", len(model.rows), len(model.pending))
	}
}

func TestTailModel_Clear(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))
	model = send(model, OrderMsg{Row: sampleRow("o-1", 0)})
	model = send(model, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})

	if len(model.rows) != 0 {
		t.Errorf("expected rows cleared, got %d", len(model.rows))
	}
	if _, ok := model.Selected(); ok {
		t.Error("expected no selection after clear")
	}
}

func TestTailModel_Navigation(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))
	for i := 0; i < 3; i++ {
		model = send(model, OrderMsg{Row: sampleRow(fmt.Sprintf("o-%d", i), int64(i))})
	}

	model = send(model, tea.KeyMsg{Type: tea.KeyDown})
	row, ok := model.Selected()
	if !ok {
		t.Fatal("expected a selected row")
	}
	if row.Event.OrderID != "o-1" {
		t.Errorf("expected o-1 selected after moving down, got %s", row.Event.OrderID)
	}
}

func TestTailModel_DecodeErrorRow(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))
	row := OrderRow{Key: "junk", Payload: "not json", DecodeErr: errors.New("failed to unmarshal order event")}
	model = send(model, OrderMsg{Row: row})

	view := model.View()
	if !strings.Contains(view, "1 undecodable") {
		t.Errorf("expected undecodable count, got:\n%s", view)
	}
	if !strings.Contains(view, "failed to unmarshal") {
		t.Errorf("expected decode error in detail panel, got:\n%s", view)
	}
}

func TestTailModel_StreamClosed(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))
	model = send(model, StreamClosedMsg{})

	if !strings.Contains(model.View(), "stream closed") {
		t.Error("expected stream closed state in header")
	}
}

func TestTailModel_Quit(t *testing.T) {
	model := sized(NewTailModel(contracts.TopicOrders, nil, 0))
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestTailModel_ViewFitsWidth(t *testing.T) {
	model := NewTailModel(contracts.TopicOrders, nil, 0)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	model = updated.(TailModel)
	model = send(model, OrderMsg{Row: sampleRow("o-with-a-very-long-identifier", 0)})

	for i, line := range strings.Split(model.View(), "\n") {
		if w := ansi.StringWidth(line); w > 40 {
			t.Errorf("line %d is %d columns wide: %q", i, w, line)
		}
	}
}

func TestTailModel_ReadsSource(t *testing.T) {
	source := make(chan OrderRow, 1)
	model := sized(NewTailModel(contracts.TopicOrders, source, 0))

	source <- sampleRow("o-9", 4)
	msg := waitForOrder(source)()
	orderMsg, ok := msg.(OrderMsg)
	if !ok {
		t.Fatalf("expected OrderMsg, got %T", msg)
	}
	model = send(model, orderMsg)
	if len(model.rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(model.rows))
	}

	close(source)
	if _, ok := waitForOrder(source)().(StreamClosedMsg); !ok {
		t.Error("expected StreamClosedMsg after source closed")
	}
}

func TestFeed(t *testing.T) {
	out := make(chan OrderRow, 1)
	handler := Feed(out)

	msg := broker.Message{
		Topic:     contracts.TopicOrders,
		Key:       "o-1001",
		Value:     []byte(`{"order_id":"o-1001","symbol":"AAPL","side":"BUY","qty":10,"price":188.25}`),
		Partition: 2,
		Offset:    7,
	}
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := <-out
	if row.Event.OrderID != "o-1001" || row.Event.Qty != 10 || row.Position() != "2/7" {
		t.Errorf("unexpected row: %+v", row)
	}

	if err := handler(context.Background(), broker.Message{Key: "bad", Value: []byte("nope")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row := <-out; row.DecodeErr == nil {
		t.Error("expected decode error for invalid payload")
	}
}

func TestFeedStopsOnCancel(t *testing.T) {
	out := make(chan OrderRow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Feed(out)(ctx, broker.Message{Value: []byte("{}")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
