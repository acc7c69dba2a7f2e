// Package metrics wires the Prometheus collectors shared across services:
// HTTP request counters, outbox backlog/drain gauges, and consumer lag.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the collectors a service registers at startup. Each
// service constructs one and passes it to its HTTP router and, in
// order-service, to the cross-service consumer. The outbox collectors and
// ConsumerLag are registered and exported but no component updates them.
type Registry struct {
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec

	OutboxBacklog      prometheus.Gauge
	OutboxPublished    *prometheus.CounterVec
	OutboxDeadLettered prometheus.Counter

	ConsumerProcessed *prometheus.CounterVec
	ConsumerLag       prometheus.Gauge

	registry *prometheus.Registry
}

// New registers every collector against a fresh prometheus.Registry scoped
// to service. Services must not share a Registry instance.
func New(service string) *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordersync",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests served, labelled by method, route and status code.",
		}, []string{"method", "path", "status"}),

		HTTPRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ordersync",
			Subsystem: service,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		OutboxBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ordersync",
			Subsystem: service,
			Name:      "outbox_backlog",
			Help:      "Outbox rows currently pending or in-progress.",
		}),

		OutboxPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordersync",
			Subsystem: service,
			Name:      "outbox_published_total",
			Help:      "Outbox rows settled, labelled by outcome (sent, failed, dead_lettered).",
		}, []string{"outcome"}),

		OutboxDeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ordersync",
			Subsystem: service,
			Name:      "outbox_dead_lettered_total",
			Help:      "Outbox rows routed to the dead-letter topic after exhausting retries.",
		}),

		ConsumerProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordersync",
			Subsystem: service,
			Name:      "consumer_messages_total",
			Help:      "Bus messages handled by the cross-service consumer, labelled by outcome.",
		}, []string{"topic", "outcome"}),

		ConsumerLag: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ordersync",
			Subsystem: service,
			Name:      "consumer_lag_messages",
			Help:      "Approximate consumer lag reported by the last fetch.",
		}),
	}

	r.registry = reg
	return r
}

// Handler serves the /metrics scrape endpoint for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
