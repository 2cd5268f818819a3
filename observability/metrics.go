// Package observability wires the service's Prometheus metrics and
// exposes them at /metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metrics registry for the fraud triage
// pipeline: throughput and outcome counters for the triage loop,
// latency histograms for the dashboard/ingress HTTP handlers, and
// WSSubscribers and TPS gauges. No component sets WSSubscribers or
// TPS; both gauges stay at zero unless a caller sets them.
type Metrics struct {
	registry *prometheus.Registry

	EventsProcessed   *prometheus.CounterVec
	CasesByStatus     *prometheus.CounterVec
	PoisonRecords     prometheus.Counter
	AIQueueEnqueued   prometheus.Counter
	AIQueueRejected   prometheus.Counter
	TriageTickLatency prometheus.Histogram
	HTTPLatency       *prometheus.HistogramVec
	WSSubscribers     prometheus.Gauge
	TPS               prometheus.Gauge
}

// New builds and registers the metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		EventsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "fraud_triage",
			Name:      "events_processed_total",
			Help:      "Transaction events read off the inbound stream, by outcome.",
		}, []string{"outcome"}),
		CasesByStatus: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "fraud_triage",
			Name:      "cases_created_total",
			Help:      "Fraud cases created, by initial status.",
		}, []string{"status"}),
		PoisonRecords: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fraud_triage",
			Name:      "poison_records_total",
			Help:      "Stream records that could not be parsed as a transaction event.",
		}),
		AIQueueEnqueued: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fraud_triage",
			Name:      "ai_queue_enqueued_total",
			Help:      "Gray-area cases successfully handed to the AI escalation queue.",
		}),
		AIQueueRejected: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fraud_triage",
			Name:      "ai_queue_rejected_total",
			Help:      "AI escalation publishes that failed or were short-circuited by the breaker.",
		}),
		TriageTickLatency: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "fraud_triage",
			Name:      "triage_tick_duration_seconds",
			Help:      "Wall time spent processing one batch of stream records.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fraud_triage",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP handler latency by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		WSSubscribers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "fraud_triage",
			Name:      "ws_subscribers",
			Help:      "Currently connected Push Bus websocket subscribers.",
		}),
		TPS: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "fraud_triage",
			Name:      "transactions_per_second",
			Help:      "Most recently sampled inbound transaction throughput.",
		}),
	}

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one HTTP handler completion.
func (m *Metrics) ObserveHTTP(route, status string, seconds float64) {
	m.HTTPLatency.WithLabelValues(route, status).Observe(seconds)
}
