// Package contracts defines the event types and names shared by the order
// and analytics services.
package contracts

import "fmt"

// OrderEvent is the message published for every accepted order.
// Published to: orders.v1
// Key: {order_id}
type OrderEvent struct {
	// Client supplied identifier; also the partition routing key.
	OrderID string `json:"order_id"`
	// Instrument identifier (e.g. "AAPL").
	Symbol string `json:"symbol"`
	// Expected to be BUY or SELL; not enforced.
	Side string `json:"side"`
	Qty  int    `json:"qty"`
	// Limit price.
	Price float64 `json:"price"`
}

// Key returns the routing key for the event.
func (e OrderEvent) Key() string {
	return e.OrderID
}

// String is used in log lines.
func (e OrderEvent) String() string {
	return fmt.Sprintf("%s %s %d %s @ %g", e.OrderID, e.Side, e.Qty, e.Symbol, e.Price)
}

// Side values. Not validated by the ingress.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Default names and topic desired state.
const (
	// TopicOrders carries OrderEvent records keyed by order_id.
	TopicOrders = "orders.v1"

	// GroupAnalytics is the consumer group of the analytics service.
	GroupAnalytics = "analytics-consumer-group"

	// DefaultPartitions is the partition count used when provisioning TopicOrders.
	DefaultPartitions = 3

	// DefaultReplicationFactor suits a single broker development cluster.
	DefaultReplicationFactor = 1
)
