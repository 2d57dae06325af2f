package broker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// ErrSendFailed is the error of sends failed through FailNextSends.
var ErrSendFailed = errors.New("memory broker: send failed")

// errAckLost is what the producer side sees when an ack was dropped by LoseNextAcks.
var errAckLost = errors.New("memory broker: ack lost")

// MemoryOption configures a MemoryBroker.
type MemoryOption func(*MemoryBroker)

// WithPartitions sets the partition count of topics created implicitly by
// Publish or Subscribe. Defaults to 3.
func WithPartitions(n int) MemoryOption {
	return func(b *MemoryBroker) {
		if n > 0 {
			b.partitions = n
		}
	}
}

// WithRetries sets how often a send whose ack was lost is retried. Defaults to 3.
func WithRetries(n int) MemoryOption {
	return func(b *MemoryBroker) {
		if n >= 0 {
			b.retries = n
		}
	}
}

// WithoutIdempotence turns off sequence number de-duplication, so a retried
// send whose first attempt was stored produces a second record.
func WithoutIdempotence() MemoryOption {
	return func(b *MemoryBroker) {
		b.idempotent = false
	}
}

// MemoryBroker is an in-process partitioned log. It keeps the properties the
// services rely on from Kafka:
//   - records with the same key go to the same partition, in publish order;
//   - each group sees every record, and within a group every partition is
//     owned by exactly one member at a time;
//   - offsets are committed as records are handed to a member, and a new
//     owner resumes from the committed offset;
//   - retried sends are de-duplicated by producer sequence number.
type MemoryBroker struct {
	mu         sync.Mutex
	topics     map[string]*memTopic
	partitions int
	retries    int
	idempotent bool
	closed     bool
	done       chan struct{}
	nextMember int

	lostAcks  int
	failSends int
}

type memTopic struct {
	name       string
	logs       [][]Message
	nextSeq    []int64 // producer side: sequence for the next send, per partition
	lastSeq    []int64 // broker side: last stored sequence, per partition
	lastOffset []int64 // offset of the record stored with lastSeq
	roundRobin int
	groups     map[string]*memGroup
}

type memGroup struct {
	committed []int64 // next offset to hand out, per partition
	inflight  map[int32]*memMember
	members   []*memMember
}

type memMember struct {
	id       string
	assigned map[int32]bool
	wake     chan struct{}
	out      chan Message
}

// NewMemoryBroker creates a new MemoryBroker instance.
func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		topics:     make(map[string]*memTopic),
		partitions: 3,
		retries:    3,
		idempotent: true,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LoseNextAcks makes the next n send attempts reach the log but lose their
// acknowledgement, which forces the producer to retry them.
func (b *MemoryBroker) LoseNextAcks(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lostAcks = n
}

// FailNextSends makes the next n sends fail without reaching the log.
func (b *MemoryBroker) FailNextSends(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSends = n
}

// Publish appends the record to the partition chosen by key. The Ack is
// completed on a separate goroutine.
func (b *MemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) *Ack {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return FailedAck(Delivery{Topic: topic, Key: key}, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return FailedAck(Delivery{Topic: topic, Key: key}, err)
	}

	t := b.topicLocked(topic, b.partitions)
	partition := t.partitionFor(key)
	d := Delivery{Topic: topic, Key: key, Partition: partition, Offset: -1}

	ack := newAck()
	if b.failSends > 0 {
		b.failSends--
		go ack.complete(d, ErrSendFailed)
		return ack
	}

	seq := t.nextSeq[partition]
	t.nextSeq[partition]++

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     append([]byte(nil), value...),
		Partition: partition,
		Timestamp: time.Now(),
	}

	err := errAckLost
	for attempt := 0; attempt <= b.retries; attempt++ {
		d.Offset = t.append(msg, seq, b.idempotent)
		if b.lostAcks > 0 {
			b.lostAcks--
			continue
		}
		err = nil
		break
	}
	if err != nil {
		d.Offset = -1
		err = fmt.Errorf("failed to produce message after %d retries: %w", b.retries, err)
	}

	b.wakeLocked(t, partition)
	go ack.complete(d, err)
	return ack
}

// append stores msg unless seq was already stored, returning the record's offset.
func (t *memTopic) append(msg Message, seq int64, idempotent bool) int64 {
	p := msg.Partition
	if idempotent && seq <= t.lastSeq[p] {
		return t.lastOffset[p]
	}
	msg.Offset = int64(len(t.logs[p]))
	t.logs[p] = append(t.logs[p], msg)
	t.lastSeq[p] = seq
	t.lastOffset[p] = msg.Offset
	return msg.Offset
}

func (t *memTopic) partitionFor(key string) int32 {
	n := len(t.logs)
	if key == "" {
		p := t.roundRobin % n
		t.roundRobin++
		return int32(p)
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int32(h.Sum32() % uint32(n))
}

// Subscribe joins groupID as a new member. Partitions are re-assigned across
// the group's members on every join and leave.
func (b *MemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	t := b.topicLocked(topic, b.partitions)
	g, ok := t.groups[groupID]
	if !ok {
		g = &memGroup{
			committed: make([]int64, len(t.logs)),
			inflight:  make(map[int32]*memMember),
		}
		t.groups[groupID] = g
	}

	b.nextMember++
	m := &memMember{
		id:       fmt.Sprintf("%s-%d", groupID, b.nextMember),
		assigned: make(map[int32]bool),
		wake:     make(chan struct{}, 1),
		out:      make(chan Message),
	}
	g.members = append(g.members, m)
	g.rebalance(len(t.logs))

	go b.serve(ctx, t, g, m)
	return m.out, nil
}

// serve hands the member's records to its channel until ctx ends or the
// broker closes.
func (b *MemoryBroker) serve(ctx context.Context, t *memTopic, g *memGroup, m *memMember) {
	defer close(m.out)
	defer b.leave(g, m, len(t.logs))

	for {
		b.mu.Lock()
		msg, ok := g.take(t, m)
		b.mu.Unlock()

		if !ok {
			select {
			case <-m.wake:
				continue
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
		}

		if !b.handOff(ctx, g, m, msg) {
			return
		}
	}
}

// handOff blocks until the member received msg. If a rebalance takes the
// partition away first, msg goes back to the log for the new owner.
func (b *MemoryBroker) handOff(ctx context.Context, g *memGroup, m *memMember, msg Message) bool {
	for {
		select {
		case m.out <- msg:
			b.mu.Lock()
			g.settle(msg, false)
			b.mu.Unlock()
			return true
		case <-m.wake:
			b.mu.Lock()
			revoked := !m.assigned[msg.Partition]
			if revoked {
				g.settle(msg, true)
			}
			b.mu.Unlock()
			if revoked {
				return true
			}
		case <-ctx.Done():
			b.mu.Lock()
			g.settle(msg, true)
			b.mu.Unlock()
			return false
		case <-b.done:
			return false
		}
	}
}

// take returns the next record of the member's lowest pending partition and
// commits past it. A partition with a record still being handed out is
// skipped.
func (g *memGroup) take(t *memTopic, m *memMember) (Message, bool) {
	for p := range t.logs {
		if !m.assigned[int32(p)] || g.inflight[int32(p)] != nil {
			continue
		}
		off := g.committed[p]
		if off < int64(len(t.logs[p])) {
			g.committed[p] = off + 1
			g.inflight[int32(p)] = m
			return t.logs[p][off], true
		}
	}
	return Message{}, false
}

// settle ends the handoff of msg. With rollback the commit is undone so the
// partition's owner receives msg again.
func (g *memGroup) settle(msg Message, rollback bool) {
	delete(g.inflight, msg.Partition)
	if rollback {
		g.committed[msg.Partition] = msg.Offset
	}
	for _, m := range g.members {
		if m.assigned[msg.Partition] {
			notify(m.wake)
		}
	}
}

func (b *MemoryBroker) leave(g *memGroup, m *memMember, partitions int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, member := range g.members {
		if member == m {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	g.rebalance(partitions)
}

// rebalance assigns partition p to member p mod len(members) and wakes everyone.
func (g *memGroup) rebalance(partitions int) {
	for _, m := range g.members {
		m.assigned = make(map[int32]bool)
	}
	if len(g.members) == 0 {
		return
	}
	for p := 0; p < partitions; p++ {
		owner := g.members[p%len(g.members)]
		owner.assigned[int32(p)] = true
	}
	for _, m := range g.members {
		notify(m.wake)
	}
}

func (b *MemoryBroker) wakeLocked(t *memTopic, partition int32) {
	for _, g := range t.groups {
		for _, m := range g.members {
			if m.assigned[partition] {
				notify(m.wake)
			}
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// EnsureTopic creates the topic with spec.Partitions partitions. An existing
// topic is left as is.
func (b *MemoryBroker) EnsureTopic(ctx context.Context, spec TopicSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("topic name is required")
	}
	if spec.Partitions < 1 {
		return fmt.Errorf("topic %s: partitions must be at least 1", spec.Name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.topicLocked(spec.Name, spec.Partitions)
	return nil
}

func (b *MemoryBroker) topicLocked(name string, partitions int) *memTopic {
	if t, ok := b.topics[name]; ok {
		return t
	}
	t := &memTopic{
		name:       name,
		logs:       make([][]Message, partitions),
		nextSeq:    make([]int64, partitions),
		lastSeq:    make([]int64, partitions),
		lastOffset: make([]int64, partitions),
		groups:     make(map[string]*memGroup),
	}
	for p := range t.lastSeq {
		t.lastSeq[p] = -1
	}
	b.topics[name] = t
	return t
}

// Records returns a copy of a partition's log.
func (b *MemoryBroker) Records(topic string, partition int32) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok || int(partition) >= len(t.logs) {
		return nil
	}
	return append([]Message(nil), t.logs[partition]...)
}

// Partitions returns the partition count of topic, or 0 if it does not exist.
func (b *MemoryBroker) Partitions(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.topics[topic]; ok {
		return len(t.logs)
	}
	return 0
}

// Members returns the number of live members of a group.
func (b *MemoryBroker) Members(topic, groupID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		return 0
	}
	if g, ok := t.groups[groupID]; ok {
		return len(g.members)
	}
	return 0
}

// Close stops all members; their channels are closed.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	return nil
}
