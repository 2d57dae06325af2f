// Package mcp exposes order submission as Model Context Protocol tools.
package mcp

import "time"

// DeliveryRecord is what the tools report about a submitted order. Offset is
// -1 until the broker acknowledged the record.
type DeliveryRecord struct {
	OrderID      string `json:"order_id"`
	SubmissionID string `json:"submission_id"`
	Topic        string `json:"topic"`
	Partition    int32  `json:"partition"`
	Offset       int64  `json:"offset"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// Delivery statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

// defaultAckTimeout bounds how long submit_order waits for the broker.
const defaultAckTimeout = 10 * time.Second

// maxExactInt is the largest quantity a JSON number carries without loss.
const maxExactInt = 1 << 53
