// Package metrics holds the prometheus collectors for checkout, payment,
// inventory and post-commit reconciliation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "urbancart"

type Metrics struct {
	registry *prometheus.Registry

	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	payments         *prometheus.CounterVec
	stockRejections  prometheus.Counter
	reconcileTasks   *prometheus.CounterVec
	reconcileDropped prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// New registers every collector on a fresh registry, so tests can build as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "orders_total",
			Help: "Checkout attempts by outcome kind.",
		}, []string{"outcome"}),
		checkoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "checkout", Name: "duration_seconds",
			Help:    "End-to-end order placement latency.",
			Buckets: prometheus.DefBuckets,
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payment", Name: "authorizations_total",
			Help: "Payment authorization results.",
		}, []string{"outcome"}),
		stockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inventory", Name: "rejections_total",
			Help: "Conditional decrements refused for lack of stock.",
		}),
		reconcileTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reconcile", Name: "tasks_total",
			Help: "Post-commit cleanup tasks by name and outcome.",
		}, []string{"task", "outcome"}),
		reconcileDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reconcile", Name: "abandoned_total",
			Help: "Cleanup tasks that exhausted their retries.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.checkouts, m.checkoutDuration, m.payments, m.stockRejections,
		m.reconcileTasks, m.reconcileDropped, m.httpRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// The recorders below are nil-safe so services can run without metrics.

func (m *Metrics) Checkout(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
	m.checkoutDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Payment(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

func (m *Metrics) ReconcileTask(task, outcome string) {
	if m == nil {
		return
	}
	m.reconcileTasks.WithLabelValues(task, outcome).Inc()
}

func (m *Metrics) ReconcileAbandoned() {
	if m == nil {
		return
	}
	m.reconcileDropped.Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
