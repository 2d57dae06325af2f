// Package metrics holds the Prometheus collectors of the order and analytics services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Publish results used as the "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	OrdersPublished *prometheus.CounterVec
	OrdersConsumed  prometheus.Counter
	Redeliveries    prometheus.Counter
	HandlerFailures prometheus.Counter
}

// New creates the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OrdersPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderflow_orders_published_total",
			Help: "Order events whose send completed, by result.",
		}, []string{"result"}),
		OrdersConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_orders_consumed_total",
			Help: "Order events handled by the subscriber.",
		}),
		Redeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_redeliveries_total",
			Help: "Records received again at an already handled position.",
		}),
		HandlerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderflow_handler_failures_total",
			Help: "Records skipped because the handler failed.",
		}),
	}

	reg.MustRegister(
		m.OrdersPublished,
		m.OrdersConsumed,
		m.Redeliveries,
		m.HandlerFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Published(result string) {
	if m != nil {
		m.OrdersPublished.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Consumed() {
	if m != nil {
		m.OrdersConsumed.Inc()
	}
}

func (m *Metrics) Redelivered() {
	if m != nil {
		m.Redeliveries.Inc()
	}
}

func (m *Metrics) HandlerFailed() {
	if m != nil {
		m.HandlerFailures.Inc()
	}
}
