package subscriber

import (
	"context"
	"encoding/json"
	"fmt"

	"orderflow/src/broker"
	"orderflow/src/contracts"
	"orderflow/src/ledger"
	"orderflow/src/logger"
	"orderflow/src/metrics"
	"orderflow/src/sanitize"
)

// LogHandler logs every record once. Records at a position the ledger has
// already seen are reported as redeliveries. l and m may be nil.
func LogHandler(l ledger.Ledger, log logger.Logger, m *metrics.Metrics) Handler {
	return func(ctx context.Context, msg broker.Message) error {
		if l != nil {
			first, err := l.MarkProcessed(ctx, ledger.Position{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
			})
			if err != nil {
				return fmt.Errorf("ledger: %w", err)
			}
			if !first {
				m.Redelivered()
				log.Warn("Redelivered OrderEvent | key=%s | partition=%d | offset=%d | already handled",
					sanitize.Line(msg.Key), msg.Partition, msg.Offset)
				return nil
			}
		}

		log.Info("Received OrderEvent | key=%s | partition=%d | offset=%d | payload=%s",
			sanitize.Line(msg.Key), msg.Partition, msg.Offset, sanitize.Payload(msg.Value))
		m.Consumed()
		return nil
	}
}

// DecodeOrder parses a record value into an OrderEvent.
func DecodeOrder(msg broker.Message) (contracts.OrderEvent, error) {
	var event contracts.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return contracts.OrderEvent{}, fmt.Errorf("failed to unmarshal order event at %s/%d/%d: %w",
			msg.Topic, msg.Partition, msg.Offset, err)
	}
	return event, nil
}

// Chain runs handlers in order and stops at the first error.
func Chain(handlers ...Handler) Handler {
	return func(ctx context.Context, msg broker.Message) error {
		for _, h := range handlers {
			if err := h(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	}
}
