package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"orderflow/src/broker"
	"orderflow/src/config"
	"orderflow/src/ledger"
	"orderflow/src/logger"
	"orderflow/src/metrics"
)

// Local runs both services in one process on a MemoryBroker. The analytics
// service starts consuming as soon as Local is created.
type Local struct {
	broker    *broker.MemoryBroker
	Orders    *OrderService
	Analytics *AnalyticsService
	ledger    ledger.Ledger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewLocal creates the topic, starts the analytics service and returns the
// order service ready to serve.
func NewLocal(cfg config.Config, log logger.Logger, m *metrics.Metrics) (*Local, error) {
	brk := broker.NewMemoryBroker(
		broker.WithPartitions(cfg.Partitions),
		broker.WithRetries(cfg.ProducerRetries),
	)

	ctx, cancel := context.WithCancel(context.Background())
	spec := broker.TopicSpec{Name: cfg.Topic, Partitions: cfg.Partitions, ReplicationFactor: cfg.ReplicationFactor}
	if err := brk.EnsureTopic(ctx, spec); err != nil {
		cancel()
		brk.Close()
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}

	l := ledger.NewMemoryLedger()
	lm := &Local{
		broker:    brk,
		Orders:    NewOrderService(brk, cfg, log, m),
		Analytics: NewAnalyticsService(brk, cfg, l, log, m),
		ledger:    l,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go func() {
		defer close(lm.done)
		if err := lm.Analytics.Run(ctx); err != nil && err != context.Canceled {
			// Errors always reach stderr, even with a silent logger
			fmt.Fprintf(os.Stderr, "[Pipeline] Analytics service error: %v\n", err)
		}
	}()

	return lm, nil
}

// Handler returns the order service's HTTP routes.
func (l *Local) Handler() http.Handler {
	return l.Orders.Handler.Routes()
}

// Broker returns the underlying broker.
func (l *Local) Broker() *broker.MemoryBroker {
	return l.broker
}

// Close stops the analytics service and closes the broker.
func (l *Local) Close() error {
	l.cancel()
	<-l.done
	err := l.broker.Close()
	if lerr := l.ledger.Close(); err == nil {
		err = lerr
	}
	return err
}
