package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"orderflow/src/broker"
	"orderflow/src/contracts"
	"orderflow/src/logger"
	"orderflow/src/metrics"
)

var sampleOrder = contracts.OrderEvent{
	OrderID: "o-1001",
	Symbol:  "AAPL",
	Side:    contracts.SideBuy,
	Qty:     10,
	Price:   188.25,
}

func newTestPublisher(t *testing.T, opts ...broker.MemoryOption) (*OrderPublisher, *broker.MemoryBroker, *observer.ObservedLogs, *metrics.Metrics) {
	t.Helper()
	brk := broker.NewMemoryBroker(opts...)
	t.Cleanup(func() { brk.Close() })

	core, logs := observer.New(zap.DebugLevel)
	m := metrics.New()
	return New(brk, contracts.TopicOrders, logger.FromZap(zap.New(core)), m), brk, logs, m
}

func TestPublishRoundTrip(t *testing.T) {
	pub, brk, _, _ := newTestPublisher(t)
	ctx := context.Background()

	ack, err := pub.Send(ctx, sampleOrder)
	require.NoError(t, err)
	d, err := ack.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, contracts.TopicOrders, d.Topic)
	assert.Equal(t, "o-1001", d.Key)

	records := brk.Records(contracts.TopicOrders, d.Partition)
	require.Len(t, records, 1)
	assert.Equal(t, "o-1001", records[0].Key)

	var decoded contracts.OrderEvent
	require.NoError(t, json.Unmarshal(records[0].Value, &decoded))
	assert.Equal(t, sampleOrder, decoded)
}

func TestPublishWireFormat(t *testing.T) {
	pub, brk, _, _ := newTestPublisher(t, broker.WithPartitions(1))
	ctx := context.Background()

	ack, err := pub.Send(ctx, sampleOrder)
	require.NoError(t, err)
	_, err = ack.Wait(ctx)
	require.NoError(t, err)

	records := brk.Records(contracts.TopicOrders, 0)
	require.Len(t, records, 1)
	assert.JSONEq(t,
		`{"order_id":"o-1001","symbol":"AAPL","side":"BUY","qty":10,"price":188.25}`,
		string(records[0].Value))
}

func TestPublishLogsSuccess(t *testing.T) {
	pub, _, logs, m := newTestPublisher(t)

	require.NoError(t, pub.Publish(context.Background(), sampleOrder))

	require.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("Published order key=o-1001 topic=orders.v1").Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersPublished.WithLabelValues(metrics.ResultOK)))
}

func TestPublishLogsBrokerFailure(t *testing.T) {
	pub, brk, logs, m := newTestPublisher(t)
	brk.FailNextSends(1)

	// The send failure is not the caller's error.
	require.NoError(t, pub.Publish(context.Background(), sampleOrder))

	require.Eventually(t, func() bool {
		return logs.FilterMessageSnippet("Failed to publish order o-1001").Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, zap.ErrorLevel, logs.FilterMessageSnippet("Failed to publish").All()[0].Level)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersPublished.WithLabelValues(metrics.ResultError)))
}

func TestPublishSerializationError(t *testing.T) {
	pub, brk, _, _ := newTestPublisher(t, broker.WithPartitions(1))

	bad := sampleOrder
	bad.Price = math.NaN()

	err := pub.Publish(context.Background(), bad)
	require.Error(t, err)

	var serr *SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "o-1001", serr.OrderID)
	assert.Empty(t, brk.Records(contracts.TopicOrders, 0))
}

func TestPublishSurvivesCallerCancellation(t *testing.T) {
	pub, _, _, _ := newTestPublisher(t)

	ctx, cancel := context.WithCancel(context.Background())
	ack, err := pub.Send(ctx, sampleOrder)
	require.NoError(t, err)
	cancel()

	_, err = ack.Wait(context.Background())
	assert.NoError(t, err)
}

func TestPublishSameOrderSamePartition(t *testing.T) {
	pub, brk, _, _ := newTestPublisher(t, broker.WithPartitions(5))
	ctx := context.Background()

	first := sampleOrder
	second := sampleOrder
	second.Qty = 20

	ack1, err := pub.Send(ctx, first)
	require.NoError(t, err)
	d1, err := ack1.Wait(ctx)
	require.NoError(t, err)

	ack2, err := pub.Send(ctx, second)
	require.NoError(t, err)
	d2, err := ack2.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, d1.Partition, d2.Partition)
	assert.Less(t, d1.Offset, d2.Offset)

	records := brk.Records(contracts.TopicOrders, d1.Partition)
	require.Len(t, records, 2)
	assert.Contains(t, string(records[1].Value), `"qty":20`)
}
