// Package subscriber consumes order events as members of a consumer group.
package subscriber

import (
	"context"
	"fmt"
	"sync"

	"orderflow/src/broker"
	"orderflow/src/logger"
	"orderflow/src/metrics"
	"orderflow/src/sanitize"
)

// Handler processes one record. Handlers must tolerate being called again
// for a record they already saw: offsets are committed automatically, so a
// restart or rebalance can redeliver.
type Handler func(ctx context.Context, msg broker.Message) error

type loopKey struct{}

// LoopFromContext returns the index of the loop running the handler.
func LoopFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(loopKey{}).(int)
	return id, ok
}

// Subscriber runs Concurrency group members on one topic. Which member reads
// which partition is decided by the broker's group coordination; a member
// beyond the partition count stays idle.
type Subscriber struct {
	broker      broker.Broker
	topic       string
	group       string
	concurrency int
	partitions  int
	handler     Handler
	logger      logger.Logger
	metrics     *metrics.Metrics
}

// New creates a subscriber. m may be nil.
func New(brk broker.Broker, topic, group string, concurrency int, handler Handler, log logger.Logger, m *metrics.Metrics) *Subscriber {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Subscriber{
		broker:      brk,
		topic:       topic,
		group:       group,
		concurrency: concurrency,
		handler:     handler,
		logger:      log,
		metrics:     m,
	}
}

// ExpectPartitions records the topic's partition count so Run can warn
// about loops that will never be assigned a partition.
func (s *Subscriber) ExpectPartitions(n int) *Subscriber {
	s.partitions = n
	return s
}

// Run joins the group Concurrency times and drains every member until ctx
// is cancelled or all member channels close.
func (s *Subscriber) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.partitions > 0 && s.concurrency > s.partitions {
		s.logger.Warn("[Subscriber] %d loops for %d partitions of '%s', %d loop(s) will stay idle",
			s.concurrency, s.partitions, s.topic, s.concurrency-s.partitions)
	}

	channels := make([]<-chan broker.Message, 0, s.concurrency)
	for i := 0; i < s.concurrency; i++ {
		ch, err := s.broker.Subscribe(ctx, s.topic, s.group)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", s.topic, err)
		}
		channels = append(channels, ch)
	}

	s.logger.Info("[Subscriber] Listening on '%s' as group '%s' with %d loop(s)",
		s.topic, s.group, s.concurrency)

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(id int, msgs <-chan broker.Message) {
			defer wg.Done()
			s.loop(ctx, id, msgs)
		}(i, ch)
	}
	wg.Wait()

	return ctx.Err()
}

func (s *Subscriber) loop(ctx context.Context, id int, msgs <-chan broker.Message) {
	ctx = context.WithValue(ctx, loopKey{}, id)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				s.logger.Info("[Subscriber-%d] Message channel closed, stopping", id)
				return
			}
			s.dispatch(ctx, id, msg)

		case <-ctx.Done():
			s.logger.Info("[Subscriber-%d] Context cancelled, stopping", id)
			return
		}
	}
}

// dispatch runs the handler. A failing or panicking handler is logged and
// the record is skipped; the loop keeps going.
func (s *Subscriber) dispatch(ctx context.Context, id int, msg broker.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.HandlerFailed()
			s.logger.Error("[Subscriber-%d] Handler panicked, skipping key=%s partition=%d offset=%d: %s",
				id, sanitize.Line(msg.Key), msg.Partition, msg.Offset, sanitize.Line(fmt.Sprint(r)))
		}
	}()

	if err := s.handler(ctx, msg); err != nil {
		s.metrics.HandlerFailed()
		s.logger.Error("[Subscriber-%d] Handler failed, skipping key=%s partition=%d offset=%d: %s",
			id, sanitize.Line(msg.Key), msg.Partition, msg.Offset, sanitize.Line(err.Error()))
	}
}
