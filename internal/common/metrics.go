package common

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "blogpipe"

// Metrics owns a private registry so that tests can build as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	CacheRequests    *prometheus.CounterVec
	ConsumerMessages *prometheus.CounterVec
	BlogsSubmitted   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_requests_total",
				Help:      "Read-through cache lookups by entity and result",
			},
			[]string{"entity", "result"},
		),
		ConsumerMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "consumer_messages_total",
				Help:      "Blog queue messages handled by the consumer, by outcome",
			},
			[]string{"outcome"},
		),
		BlogsSubmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "blogs_submitted_total",
				Help:      "Blog submissions accepted onto the queue",
			},
		),
	}

	m.registry.MustRegister(m.HTTPRequests, m.HTTPDuration, m.CacheRequests, m.ConsumerMessages, m.BlogsSubmitted)

	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPRequest(method string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(method).Observe(d.Seconds())
	}
}

func (m *Metrics) CacheHit(entity string) {
	if m != nil {
		m.CacheRequests.WithLabelValues(entity, "hit").Inc()
	}
}

func (m *Metrics) CacheMiss(entity string) {
	if m != nil {
		m.CacheRequests.WithLabelValues(entity, "miss").Inc()
	}
}

func (m *Metrics) ConsumerOutcome(outcome string) {
	if m != nil {
		m.ConsumerMessages.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) BlogSubmitted() {
	if m != nil {
		m.BlogsSubmitted.Inc()
	}
}
