// Package metrics exposes saga counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Consumer outcomes.
const (
	OutcomeHandled   = "handled"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
	OutcomeIgnored   = "ignored"
)

// Metrics groups the collectors of one service process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	consumed      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	reservations  *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}

	m := &Metrics{
		registry: registry,
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "saga",
			Name:        "events_consumed_total",
			Help:        "Events read from the broker, by topic, type and outcome.",
			ConstLabels: labels,
		}, []string{"topic", "type", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "saga",
			Name:        "order_transitions_total",
			Help:        "Order state changes applied by the saga handler.",
			ConstLabels: labels,
		}, []string{"trigger", "status"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "saga",
			Name:        "stock_reservations_total",
			Help:        "Reservation outcomes recorded by the inventory engine.",
			ConstLabels: labels,
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "saga",
			Name:        "notifications_total",
			Help:        "Notification jobs by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.consumed,
		m.transitions,
		m.reservations,
		m.notifications,
	)
	return m
}

func (m *Metrics) EventConsumed(topic, eventType, outcome string) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(topic, eventType, outcome).Inc()
}

func (m *Metrics) OrderTransition(trigger, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(trigger, status).Inc()
}

func (m *Metrics) Reservation(status string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(status).Inc()
}

func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
