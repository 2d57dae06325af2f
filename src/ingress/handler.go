// Package ingress serves the HTTP endpoint that accepts orders.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"orderflow/src/contracts"
	"orderflow/src/logger"
	"orderflow/src/metrics"
	"orderflow/src/publisher"
	"orderflow/src/sanitize"
)

// maxBodyBytes caps the size of an order request body.
const maxBodyBytes = 1 << 20

// Publisher is the part of the order publisher the endpoint needs.
type Publisher interface {
	Publish(ctx context.Context, event contracts.OrderEvent) error
}

// createOrderRequest mirrors contracts.OrderEvent with pointers so that an
// absent field can be told apart from a zero value.
type createOrderRequest struct {
	OrderID *string  `json:"order_id"`
	Symbol  *string  `json:"symbol"`
	Side    *string  `json:"side"`
	Qty     *int     `json:"qty"`
	Price   *float64 `json:"price"`
}

// event validates presence only; ranges and side values are not checked.
func (r createOrderRequest) event() (contracts.OrderEvent, error) {
	var missing []string
	if r.OrderID == nil || *r.OrderID == "" {
		missing = append(missing, "order_id")
	}
	if r.Symbol == nil {
		missing = append(missing, "symbol")
	}
	if r.Side == nil {
		missing = append(missing, "side")
	}
	if r.Qty == nil {
		missing = append(missing, "qty")
	}
	if r.Price == nil {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return contracts.OrderEvent{}, fmt.Errorf("missing required fields: %v", missing)
	}

	return contracts.OrderEvent{
		OrderID: *r.OrderID,
		Symbol:  *r.Symbol,
		Side:    *r.Side,
		Qty:     *r.Qty,
		Price:   *r.Price,
	}, nil
}

// Handler holds the dependencies of the HTTP routes.
type Handler struct {
	publisher Publisher
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// NewHandler creates the route handlers. m may be nil, in which case
// /metrics answers 404.
func NewHandler(pub Publisher, log logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		publisher: pub,
		logger:    log,
		metrics:   m,
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/orders", h.CreateOrder)
	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	return r
}

// CreateOrder decodes the order, publishes it and acknowledges acceptance.
// The acknowledgement means "handed to the broker client", not "stored".
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	event, err := decodeOrder(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.publisher.Publish(r.Context(), event); err != nil {
		var serr *publisher.SerializationError
		if errors.As(err, &serr) {
			h.logger.Error("Rejecting order %s: %s", sanitize.Line(event.OrderID), sanitize.Line(err.Error()))
		} else {
			h.logger.Error("Failed to hand off order %s: %s", sanitize.Line(event.OrderID), sanitize.Line(err.Error()))
		}
		http.Error(w, "failed to publish order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Published order %s", event.OrderID)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok")
}

func decodeOrder(body io.Reader) (contracts.OrderEvent, error) {
	dec := json.NewDecoder(body)

	var req createOrderRequest
	if err := dec.Decode(&req); err != nil {
		return contracts.OrderEvent{}, fmt.Errorf("invalid order body: %w", err)
	}
	if dec.More() {
		return contracts.OrderEvent{}, fmt.Errorf("invalid order body: unexpected data after JSON object")
	}
	return req.event()
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Debug("%s %s status=%d bytes=%d duration=%s request_id=%s",
			r.Method, sanitize.Line(r.URL.Path), ww.Status(), ww.BytesWritten(), time.Since(start),
			middleware.GetReqID(r.Context()))
	})
}
