// Package publisher sends order events to the broker.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"orderflow/src/broker"
	"orderflow/src/contracts"
	"orderflow/src/logger"
	"orderflow/src/metrics"
	"orderflow/src/sanitize"
)

// SerializationError reports an event that could not be encoded. It points
// at a programming defect rather than bad input.
type SerializationError struct {
	OrderID string
	Err     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("error serializing order event %s: %v", e.OrderID, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// OrderPublisher serializes order events and hands them to the broker
// without waiting for the outcome.
type OrderPublisher struct {
	broker  broker.Broker
	topic   string
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates a publisher for topic. m may be nil.
func New(brk broker.Broker, topic string, log logger.Logger, m *metrics.Metrics) *OrderPublisher {
	return &OrderPublisher{
		broker:  brk,
		topic:   topic,
		logger:  log,
		metrics: m,
	}
}

// Topic is the topic events are published to.
func (p *OrderPublisher) Topic() string {
	return p.topic
}

// Publish encodes event and submits it keyed by its order id. It returns as
// soon as the broker client took the record; the outcome is only logged.
func (p *OrderPublisher) Publish(ctx context.Context, event contracts.OrderEvent) error {
	_, err := p.Send(ctx, event)
	return err
}

// Send is Publish for callers that want to observe the outcome themselves.
// The completion log line is written either way.
func (p *OrderPublisher) Send(ctx context.Context, event contracts.OrderEvent) (*broker.Ack, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, &SerializationError{OrderID: event.OrderID, Err: err}
	}

	key := event.Key()

	// The caller's cancellation (e.g. the HTTP request finishing) must not
	// abort a record the client already buffered.
	ack := p.broker.Publish(context.WithoutCancel(ctx), p.topic, key, payload)
	ack.Then(func(d broker.Delivery, err error) {
		if err != nil {
			p.metrics.Published(metrics.ResultError)
			p.logger.Error("Failed to publish order %s: %v", sanitize.Line(event.OrderID), err)
			return
		}
		p.metrics.Published(metrics.ResultOK)
		p.logger.Info("Published order key=%s topic=%s partition=%d offset=%d",
			sanitize.Line(key), d.Topic, d.Partition, d.Offset)
	})

	return ack, nil
}
