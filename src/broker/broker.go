// Package broker defines the interface for message brokers and provides implementations.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker is closed")

// Broker abstracts message publishing and consumption.
// This interface supports both the in-memory and the distributed (Kafka/Redpanda) implementations.
type Broker interface {
	// Publish hands a record to the broker client and returns immediately.
	// key selects the partition. The returned Ack completes once the broker
	// acknowledged or finally rejected the record.
	Publish(ctx context.Context, topic string, key string, value []byte) *Ack

	// Subscribe joins groupID as a new member and returns a channel of the
	// records assigned to that member. Each call is a distinct member. The
	// channel is closed when ctx is cancelled or the broker is closed.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// EnsureTopic creates the topic if it does not exist yet.
	EnsureTopic(ctx context.Context, spec TopicSpec) error

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message represents a consumed message from a broker.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Delivery describes where the broker stored a produced record.
type Delivery struct {
	Topic     string
	Key       string
	Partition int32
	Offset    int64
}

// TopicSpec is the desired state of a topic.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}
