package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"orderflow/src/broker"
	"orderflow/src/contracts"
	"orderflow/src/ledger"
	"orderflow/src/logger"
	"orderflow/src/metrics"
)

const testGroup = contracts.GroupAnalytics

func observedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logger.FromZap(zap.New(core)), logs
}

func publish(t *testing.T, brk broker.Broker, key string, value []byte) broker.Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := brk.Publish(ctx, contracts.TopicOrders, key, value).Wait(ctx)
	require.NoError(t, err)
	return d
}

// runSubscriber starts s and returns a function that stops it and waits.
func runSubscriber(t *testing.T, s *Subscriber) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("Timeout waiting for subscriber to stop")
		}
	}
}

func TestSubscriber_LogsEveryRecord(t *testing.T) {
	brk := broker.NewMemoryBroker()
	defer brk.Close()
	log, logs := observedLogger()
	m := metrics.New()

	sub := New(brk, contracts.TopicOrders, testGroup, 1, LogHandler(ledger.NewMemoryLedger(), log, m), log, m)
	stop := runSubscriber(t, sub)
	defer stop()

	payload := []byte(`{"order_id":"o-1001","symbol":"AAPL","side":"BUY","qty":10,"price":188.25}`)
	d := publish(t, brk, "o-1001", payload)

	want := fmt.Sprintf("Received OrderEvent | key=o-1001 | partition=%d | offset=%d | payload=%s",
		d.Partition, d.Offset, payload)
	require.Eventually(t, func() bool {
		return logs.FilterMessage(want).Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersConsumed))
}

func TestSubscriber_FailingHandlerSkipsRecord(t *testing.T) {
	brk := broker.NewMemoryBroker(broker.WithPartitions(1))
	defer brk.Close()
	log, logs := observedLogger()
	m := metrics.New()

	var mu sync.Mutex
	var seen []string
	handler := func(ctx context.Context, msg broker.Message) error {
		mu.Lock()
		seen = append(seen, string(msg.Value))
		mu.Unlock()
		switch string(msg.Value) {
		case "bad":
			return errors.New("cannot handle")
		case "boom":
			panic("handler exploded")
		}
		return nil
	}

	stop := runSubscriber(t, New(brk, contracts.TopicOrders, testGroup, 1, handler, log, m))
	defer stop()

	for _, v := range []string{"bad", "boom", "good"} {
		publish(t, brk, "o-1", []byte(v))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"bad", "boom", "good"}, seen)
	mu.Unlock()

	assert.Equal(t, 1, logs.FilterMessageSnippet("Handler failed, skipping key=o-1").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Handler panicked, skipping key=o-1").Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HandlerFailures))
}

func TestSubscriber_LoopsSharePartitions(t *testing.T) {
	const partitions = 3
	brk := broker.NewMemoryBroker(broker.WithPartitions(partitions))
	defer brk.Close()

	var mu sync.Mutex
	owners := make(map[int32]map[int]bool)
	received := 0
	handler := func(ctx context.Context, msg broker.Message) error {
		id, ok := LoopFromContext(ctx)
		assert.True(t, ok)
		mu.Lock()
		defer mu.Unlock()
		if owners[msg.Partition] == nil {
			owners[msg.Partition] = make(map[int]bool)
		}
		owners[msg.Partition][id] = true
		received++
		return nil
	}

	sub := New(brk, contracts.TopicOrders, testGroup, partitions, handler, logger.NewSilentLogger(), nil)
	stop := runSubscriber(t, sub)
	defer stop()

	require.Eventually(t, func() bool {
		return brk.Members(contracts.TopicOrders, testGroup) == partitions
	}, time.Second, 5*time.Millisecond)

	const total = 45
	for i := 0; i < total; i++ {
		publish(t, brk, fmt.Sprintf("o-%d", i), []byte("x"))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received == total
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for p, loops := range owners {
		assert.Len(t, loops, 1, "partition %d handled by more than one loop", p)
	}
}

func TestSubscriber_WarnsAboutIdleLoops(t *testing.T) {
	brk := broker.NewMemoryBroker(broker.WithPartitions(2))
	defer brk.Close()
	log, logs := observedLogger()

	sub := New(brk, contracts.TopicOrders, testGroup, 4, LogHandler(nil, log, nil), log, nil).ExpectPartitions(2)
	stop := runSubscriber(t, sub)
	defer stop()

	require.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("2 loop(s) will stay idle").Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, zap.WarnLevel, logs.FilterMessageSnippet("will stay idle").All()[0].Level)
}

func TestSubscriber_StopsWhenBrokerCloses(t *testing.T) {
	brk := broker.NewMemoryBroker()
	sub := New(brk, contracts.TopicOrders, testGroup, 2, LogHandler(nil, logger.NewSilentLogger(), nil), logger.NewSilentLogger(), nil)

	done := make(chan error, 1)
	go func() { done <- sub.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return brk.Members(contracts.TopicOrders, testGroup) == 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, brk.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for subscriber to stop")
	}
}

func TestSubscriber_SubscribeError(t *testing.T) {
	brk := broker.NewMemoryBroker()
	require.NoError(t, brk.Close())

	sub := New(brk, contracts.TopicOrders, testGroup, 1, LogHandler(nil, logger.NewSilentLogger(), nil), logger.NewSilentLogger(), nil)
	err := sub.Run(context.Background())
	assert.ErrorIs(t, err, broker.ErrClosed)
}

func TestLogHandler_Redelivery(t *testing.T) {
	log, logs := observedLogger()
	m := metrics.New()
	h := LogHandler(ledger.NewMemoryLedger(), log, m)

	msg := broker.Message{Topic: contracts.TopicOrders, Key: "o-1", Value: []byte("{}"), Partition: 1, Offset: 7}
	require.NoError(t, h(context.Background(), msg))
	require.NoError(t, h(context.Background(), msg))

	assert.Equal(t, 1, logs.FilterMessageSnippet("Received OrderEvent | key=o-1").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Redelivered OrderEvent | key=o-1 | partition=1 | offset=7").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersConsumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Redeliveries))
}

const hostileKey = "o-1\x1b[2J\x1b[31mFAKE"

func assertNoEscapes(t *testing.T, logs *observer.ObservedLogs) {
	t.Helper()
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, "\x1b", "log line %q", entry.Message)
	}
}

func TestLogHandler_SanitizesKeys(t *testing.T) {
	log, logs := observedLogger()
	h := LogHandler(ledger.NewMemoryLedger(), log, nil)

	msg := broker.Message{Topic: contracts.TopicOrders, Key: hostileKey, Value: []byte("{}"), Partition: 0, Offset: 3}
	require.NoError(t, h(context.Background(), msg))
	require.NoError(t, h(context.Background(), msg))

	assert.Equal(t, 1, logs.FilterMessageSnippet("Received OrderEvent | key=o-1FAKE").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Redelivered OrderEvent | key=o-1FAKE").Len())
	assertNoEscapes(t, logs)
}

func TestSubscriber_SanitizesFailureLines(t *testing.T) {
	brk := broker.NewMemoryBroker(broker.WithPartitions(1))
	defer brk.Close()
	log, logs := observedLogger()

	handler := func(ctx context.Context, msg broker.Message) error {
		if string(msg.Value) == "boom" {
			panic("bad key " + msg.Key)
		}
		return fmt.Errorf("cannot handle %s", msg.Key)
	}

	stop := runSubscriber(t, New(brk, contracts.TopicOrders, testGroup, 1, handler, log, nil))
	defer stop()

	publish(t, brk, hostileKey, []byte("bad"))
	publish(t, brk, hostileKey, []byte("boom"))

	require.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("Handler failed, skipping key=o-1FAKE").Len() == 1 &&
			logs.FilterMessageSnippet("Handler panicked, skipping key=o-1FAKE").Len() == 1
	}, time.Second, 5*time.Millisecond)
	assertNoEscapes(t, logs)
}

type brokenLedger struct{}

func (brokenLedger) MarkProcessed(context.Context, ledger.Position) (bool, error) {
	return false, errors.New("connection refused")
}

func (brokenLedger) Close() error { return nil }

func TestLogHandler_LedgerError(t *testing.T) {
	log, logs := observedLogger()
	h := LogHandler(brokenLedger{}, log, nil)

	err := h(context.Background(), broker.Message{Topic: contracts.TopicOrders, Key: "o-1"})
	assert.ErrorContains(t, err, "connection refused")
	assert.Zero(t, logs.FilterMessageSnippet("Received OrderEvent").Len())
}

func TestDecodeOrder(t *testing.T) {
	event := contracts.OrderEvent{OrderID: "o-1001", Symbol: "AAPL", Side: contracts.SideBuy, Qty: 10, Price: 188.25}
	value, err := json.Marshal(event)
	require.NoError(t, err)

	got, err := DecodeOrder(broker.Message{Value: value})
	require.NoError(t, err)
	assert.Equal(t, event, got)

	_, err = DecodeOrder(broker.Message{Topic: "orders.v1", Partition: 2, Offset: 9, Value: []byte("nope")})
	assert.ErrorContains(t, err, "orders.v1/2/9")
}

func TestChain(t *testing.T) {
	var calls []string
	step := func(name string, err error) Handler {
		return func(context.Context, broker.Message) error {
			calls = append(calls, name)
			return err
		}
	}

	err := Chain(step("a", nil), step("b", assert.AnError), step("c", nil))(context.Background(), broker.Message{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"a", "b"}, calls)
}
