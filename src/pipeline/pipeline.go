// Package pipeline wires the order service and the analytics service onto a
// broker. It is used by the standalone binaries and by the CLI.
package pipeline

import (
	"context"
	"fmt"

	"orderflow/src/broker"
	"orderflow/src/config"
	"orderflow/src/ingress"
	"orderflow/src/ledger"
	"orderflow/src/logger"
	"orderflow/src/metrics"
	"orderflow/src/publisher"
	"orderflow/src/subscriber"
)

// Mode selects the broker implementation.
type Mode string

const (
	// KafkaMode talks to the brokers in KAFKA_BROKERS.
	KafkaMode Mode = "kafka"
	// LocalMode keeps everything in one process on a MemoryBroker.
	LocalMode Mode = "local"
)

// OpenBroker creates the broker for mode.
func OpenBroker(mode Mode, cfg config.Config, log logger.Logger) (broker.Broker, error) {
	switch mode {
	case KafkaMode:
		return broker.NewKafkaBroker(cfg, log)
	case LocalMode:
		return broker.NewMemoryBroker(
			broker.WithPartitions(cfg.Partitions),
			broker.WithRetries(cfg.ProducerRetries),
		), nil
	default:
		return nil, fmt.Errorf("unknown broker mode %q", mode)
	}
}

// OrderService accepts orders over HTTP and publishes them.
type OrderService struct {
	Publisher *publisher.OrderPublisher
	Handler   *ingress.Handler
	addr      string
	logger    logger.Logger
}

// NewOrderService creates the order service on brk.
func NewOrderService(brk broker.Broker, cfg config.Config, log logger.Logger, m *metrics.Metrics) *OrderService {
	pub := publisher.New(brk, cfg.Topic, log, m)
	return &OrderService{
		Publisher: pub,
		Handler:   ingress.NewHandler(pub, log, m),
		addr:      cfg.HTTPAddr,
		logger:    log,
	}
}

// Run serves HTTP until ctx is cancelled.
func (s *OrderService) Run(ctx context.Context) error {
	return ingress.NewServer(s.addr, s.Handler.Routes(), s.logger).Run(ctx)
}

// AnalyticsService logs every order event it receives as a member of the
// analytics consumer group.
type AnalyticsService struct {
	Subscriber *subscriber.Subscriber
}

// NewAnalyticsService creates the analytics service on brk. l may be nil to
// disable redelivery detection.
func NewAnalyticsService(brk broker.Broker, cfg config.Config, l ledger.Ledger, log logger.Logger, m *metrics.Metrics) *AnalyticsService {
	sub := subscriber.New(brk, cfg.Topic, cfg.Group, cfg.Concurrency,
		subscriber.LogHandler(l, log, m), log, m).ExpectPartitions(cfg.Partitions)
	return &AnalyticsService{Subscriber: sub}
}

// Run consumes until ctx is cancelled.
func (a *AnalyticsService) Run(ctx context.Context) error {
	return a.Subscriber.Run(ctx)
}
