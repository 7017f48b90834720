// Package metrics agrupa los contadores Prometheus del pipeline y del relay.
// Todos los métodos aceptan un receptor nil para que los tests no necesiten registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	idempotencyHits *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	retries         *prometheus.CounterVec
	deadLetters     *prometheus.CounterVec
	outbox          *prometheus.CounterVec
}

// New crea y registra las métricas en reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hexashop_requests_total",
				Help: "Requests processed by the pipeline, by request name and outcome.",
			},
			[]string{"request", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hexashop_request_duration_seconds",
				Help:    "Pipeline request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"request"},
		),
		idempotencyHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hexashop_idempotency_hits_total",
				Help: "Commands answered from a stored idempotency record.",
			},
			[]string{"request"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hexashop_cache_lookups_total",
				Help: "Query cache lookups, by result (hit, miss, error).",
			},
			[]string{"request", "result"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hexashop_retries_total",
				Help: "Retry attempts performed by the resilience stage.",
			},
			[]string{"request"},
		),
		deadLetters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hexashop_dead_letters_total",
				Help: "Faulted requests captured as dead letters, by append status.",
			},
			[]string{"request", "status"},
		),
		outbox: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hexashop_outbox_messages_total",
				Help: "Outbox messages handled by the relay, by type and status.",
			},
			[]string{"type", "status"},
		),
	}
	reg.MustRegister(m.requests, m.latency, m.idempotencyHits, m.cacheLookups, m.retries, m.deadLetters, m.outbox)
	return m
}

// Handler expone el registry por HTTP.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(request, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(request, outcome).Inc()
	m.latency.WithLabelValues(request).Observe(elapsed.Seconds())
}

func (m *Metrics) IdempotencyHit(request string) {
	if m == nil {
		return
	}
	m.idempotencyHits.WithLabelValues(request).Inc()
}

func (m *Metrics) CacheLookup(request, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(request, result).Inc()
}

func (m *Metrics) Retry(request string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(request).Inc()
}

func (m *Metrics) DeadLetter(request, status string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(request, status).Inc()
}

func (m *Metrics) Outbox(eventType, status string) {
	if m == nil {
		return
	}
	m.outbox.WithLabelValues(eventType, status).Inc()
}
