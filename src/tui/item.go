package tui

import (
	"fmt"
	"time"

	"orderflow/src/contracts"
)

// OrderRow is one received record as shown in the tail view.
type OrderRow struct {
	Event     contracts.OrderEvent
	Key       string
	Partition int32
	Offset    int64
	Payload   string
	Received  time.Time
	// DecodeErr is set when the payload is not a valid OrderEvent.
	DecodeErr error
}

// Position returns partition/offset for display.
func (r OrderRow) Position() string {
	return fmt.Sprintf("%d/%d", r.Partition, r.Offset)
}

// cells returns the table cells of the row.
func (r OrderRow) cells() []string {
	if r.DecodeErr != nil {
		return []string{r.Received.Format("15:04:05"), r.Key, "?", "-", "-", "-", r.Position()}
	}
	return []string{
		r.Received.Format("15:04:05"),
		r.Event.OrderID,
		r.Event.Symbol,
		r.Event.Side,
		fmt.Sprintf("%d", r.Event.Qty),
		fmt.Sprintf("%.2f", r.Event.Price),
		r.Position(),
	}
}
