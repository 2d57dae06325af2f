package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"orderflow/src/broker"
	"orderflow/src/contracts"
	"orderflow/src/logger"
	"orderflow/src/sanitize"
)

// Sender hands an order to the broker and returns its acknowledgement.
type Sender interface {
	Send(ctx context.Context, event contracts.OrderEvent) (*broker.Ack, error)
	Topic() string
}

// Server is the MCP server for orderflow.
type Server struct {
	mcpServer  *server.MCPServer
	sender     Sender
	store      DeliveryStore
	logger     logger.Logger
	ackTimeout time.Duration
}

// NewServer creates a new MCP server publishing through sender.
func NewServer(sender Sender, log logger.Logger) *Server {
	s := server.NewMCPServer(
		"orderflow",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer:  s,
		sender:     sender,
		store:      NewInMemoryStore(),
		logger:     log,
		ackTimeout: defaultAckTimeout,
	}
	srv.registerTools()

	return srv
}

func (s *Server) registerTools() {
	submitTool := mcp.NewTool("submit_order",
		mcp.WithDescription("Publish an order event to the orders topic and wait for the broker to acknowledge it. Returns the partition and offset the order was written to."),
		mcp.WithString("order_id",
			mcp.Required(),
			mcp.Description("Order identifier, also the partition key"),
		),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Instrument symbol, e.g. AAPL"),
		),
		mcp.WithString("side",
			mcp.Required(),
			mcp.Description("BUY or SELL"),
		),
		mcp.WithNumber("qty",
			mcp.Required(),
			mcp.Description("Quantity"),
		),
		mcp.WithNumber("price",
			mcp.Required(),
			mcp.Description("Limit price"),
		),
	)

	deliveryTool := mcp.NewTool("get_delivery",
		mcp.WithDescription("Get the latest delivery record of an order submitted through submit_order."),
		mcp.WithString("order_id",
			mcp.Required(),
			mcp.Description("Order identifier passed to submit_order"),
		),
	)

	s.mcpServer.AddTool(submitTool, s.handleSubmitOrder)
	s.mcpServer.AddTool(deliveryTool, s.handleGetDelivery)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) handleSubmitOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	event, err := orderFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ack, err := s.sender.Send(ctx, event)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to publish order: %v", err)), nil
	}

	pending := DeliveryRecord{
		OrderID:      event.OrderID,
		SubmissionID: uuid.NewString(),
		Topic:        s.sender.Topic(),
		Partition:    -1,
		Offset:       -1,
		Status:       StatusPending,
		Timestamp:    now(),
	}
	s.store.Store(pending)

	// The final outcome replaces the pending record whenever it arrives.
	ack.Then(func(d broker.Delivery, err error) {
		s.store.Resolve(resolved(pending, d, err))
	})

	waitCtx, cancel := context.WithTimeout(ctx, s.ackTimeout)
	defer cancel()

	record := pending
	select {
	case <-ack.Done():
		d, err := ack.Wait(context.Background())
		record = resolved(pending, d, err)
		s.store.Resolve(record)
	case <-waitCtx.Done():
		// Timed out or the caller went away. The record stays pending.
	}
	s.logger.Info("[MCP] submit_order %s: %s", sanitize.Line(event.String()), record.Status)

	return jsonResult(record)
}

// resolved turns a pending record into its final form.
func resolved(pending DeliveryRecord, d broker.Delivery, err error) DeliveryRecord {
	record := pending
	record.Timestamp = now()
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return record
	}
	record.Status = StatusDelivered
	record.Topic = d.Topic
	record.Partition = d.Partition
	record.Offset = d.Offset
	return record
}

// orderFromRequest applies the same presence and type rules as POST /orders.
func orderFromRequest(request mcp.CallToolRequest) (contracts.OrderEvent, error) {
	var event contracts.OrderEvent
	var err error

	if event.OrderID, err = request.RequireString("order_id"); err != nil || event.OrderID == "" {
		return event, errors.New("order_id parameter is required")
	}
	if event.Symbol, err = request.RequireString("symbol"); err != nil {
		return event, err
	}
	if event.Side, err = request.RequireString("side"); err != nil {
		return event, err
	}
	qty, err := request.RequireFloat("qty")
	if err != nil {
		return event, err
	}
	if qty != math.Trunc(qty) || math.Abs(qty) > maxExactInt {
		return event, fmt.Errorf("qty must be a whole number, got %v", qty)
	}
	event.Qty = int(qty)
	if event.Price, err = request.RequireFloat("price"); err != nil {
		return event, err
	}
	return event, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *Server) handleGetDelivery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID := request.GetString("order_id", "")
	if orderID == "" {
		return mcp.NewToolResultError("order_id parameter is required"), nil
	}

	record, found := s.store.Get(orderID)
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("no delivery recorded for order_id=%s", orderID)), nil
	}
	return jsonResult(record)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
