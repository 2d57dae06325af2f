package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"orderflow/src/config"
	"orderflow/src/logger"
)

// flushTimeout bounds how long Close waits for buffered records.
const flushTimeout = 10 * time.Second

// KafkaBroker is a Kafka-compatible broker implementation using franz-go.
type KafkaBroker struct {
	client *kgo.Client
	cfg    config.Config
	logger logger.Logger

	mu        sync.Mutex
	consumers map[string]*kgo.Client // member id -> consumer client
	closed    bool
}

// NewKafkaBroker creates the shared producer client.
// Consumer clients are created per Subscribe call.
func NewKafkaBroker(cfg config.Config, log logger.Logger) (*KafkaBroker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	client, err := kgo.NewClient(producerOpts(cfg, log)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &KafkaBroker{
		client:    client,
		cfg:       cfg,
		logger:    log,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// producerOpts wires the delivery guarantees of the publisher: acks from all
// in-sync replicas and idempotent writes (franz-go default, never disabled
// here) so that the bounded retries cannot duplicate a record.
func producerOpts(cfg config.Config, log logger.Logger) []kgo.Opt {
	return []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID("orderflow-producer-" + shortID()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordRetries(cfg.ProducerRetries),
		kgo.WithLogger(newKgoLogger(log)),
	}
}

// consumerOpts configures one group member: offsets reset to the earliest
// record when the group has none, and are committed automatically on an
// interval regardless of handler outcome. A rebalance that revokes
// partitions waits until the polled batch was handed to the member.
func consumerOpts(cfg config.Config, log logger.Logger, topic, groupID, memberID string) []kgo.Opt {
	return []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID("orderflow-consumer-" + memberID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.AutoCommitInterval(cfg.AutoCommitInterval),
		kgo.BlockRebalanceOnPoll(),
		kgo.WithLogger(newKgoLogger(log)),
	}
}

// Publish sends a message to a topic with the specified key.
// The record is buffered by the client; the Ack completes from the
// client's produce callback.
func (b *KafkaBroker) Publish(ctx context.Context, topic string, key string, value []byte) *Ack {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return FailedAck(Delivery{Topic: topic, Key: key}, ErrClosed)
	}

	ack := newAck()
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	b.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		d := Delivery{
			Topic:     r.Topic,
			Key:       string(r.Key),
			Partition: r.Partition,
			Offset:    r.Offset,
		}
		if err != nil {
			err = fmt.Errorf("failed to produce message: %w", err)
		}
		ack.complete(d, err)
	})

	return ack
}

// Subscribe creates a consumer group member for the specified topic.
// Returns a channel that will receive the records assigned to it.
func (b *KafkaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	memberID := shortID()
	consumer, err := kgo.NewClient(consumerOpts(b.cfg, b.logger, topic, groupID, memberID)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	b.consumers[memberID] = consumer

	// Unbuffered: a record is either with the member or still with the
	// client, never parked where a revoked partition could leak to it.
	msgChan := make(chan Message)
	go b.consumeLoop(ctx, memberID, consumer, msgChan)

	return msgChan, nil
}

// consumeLoop continuously polls for messages and sends them to the channel.
func (b *KafkaBroker) consumeLoop(ctx context.Context, memberID string, consumer *kgo.Client, msgChan chan<- Message) {
	defer close(msgChan)
	defer b.release(memberID, consumer)

	for {
		if ctx.Err() != nil {
			return
		}

		fetches := consumer.PollRecords(ctx, b.cfg.MaxPollRecords)
		if fetches.IsClientClosed() {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error("[KafkaBroker] Fetch error topic=%s partition=%d: %v", topic, partition, err)
		})

		stop := false
		fetches.EachRecord(func(record *kgo.Record) {
			if stop {
				return
			}
			msg := Message{
				Topic:     record.Topic,
				Key:       string(record.Key),
				Value:     record.Value,
				Partition: record.Partition,
				Offset:    record.Offset,
				Timestamp: record.Timestamp,
			}

			select {
			case msgChan <- msg:
			case <-ctx.Done():
				stop = true
			}
		})
		if stop {
			return
		}
		consumer.AllowRebalance()
	}
}

// release closes a member's client, leaving the group.
func (b *KafkaBroker) release(memberID string, consumer *kgo.Client) {
	b.mu.Lock()
	_, owned := b.consumers[memberID]
	delete(b.consumers, memberID)
	b.mu.Unlock()

	// Close already closed it otherwise.
	if owned {
		consumer.CloseAllowingRebalance()
	}
}

// EnsureTopic issues a CreateTopics request. A topic that already exists is
// not an error.
func (b *KafkaBroker) EnsureTopic(ctx context.Context, spec TopicSpec) error {
	req := kmsg.NewPtrCreateTopicsRequest()
	req.TimeoutMillis = 15000

	topic := kmsg.NewCreateTopicsRequestTopic()
	topic.Topic = spec.Name
	topic.NumPartitions = int32(spec.Partitions)
	topic.ReplicationFactor = int16(spec.ReplicationFactor)
	req.Topics = append(req.Topics, topic)

	resp, err := req.RequestWith(ctx, b.client)
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", spec.Name, err)
	}

	for _, t := range resp.Topics {
		err := kerr.ErrorForCode(t.ErrorCode)
		if err == nil || errors.Is(err, kerr.TopicAlreadyExists) {
			continue
		}
		return fmt.Errorf("failed to create topic %s: %w", t.Topic, err)
	}
	return nil
}

// Close flushes buffered records, then shuts down the producer and all
// consumer connections.
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := b.consumers
	b.consumers = make(map[string]*kgo.Client)
	b.mu.Unlock()

	for _, consumer := range consumers {
		consumer.CloseAllowingRebalance()
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	flushErr := b.client.Flush(ctx)

	b.client.Close()

	if flushErr != nil {
		return fmt.Errorf("failed to flush pending records: %w", flushErr)
	}
	return nil
}

func shortID() string {
	return uuid.NewString()[:8]
}
