package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ujs-rpc/message"
	"ujs-rpc/protocol"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics counts calls and observes their latency per method. It is a
// prometheus.Collector; register it before use.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors under the ujs_client namespace.
func NewMetrics() *Metrics {
	return &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ujs_client",
			Name:      "calls_total",
			Help:      "Number of UserAndJobState calls by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ujs_client",
			Name:      "call_duration_seconds",
			Help:      "Latency of UserAndJobState calls by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.calls.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.calls.Collect(ch)
	m.duration.Collect(ch)
}

// Calls returns the counter for method and outcome ("ok" or "error").
func (m *Metrics) Calls(method, outcome string) prometheus.Counter {
	return m.calls.WithLabelValues(method, outcome)
}

// Middleware records every call passing through it.
func (m *Metrics) Middleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			method := protocol.ShortName(req.Method)
			start := time.Now()
			resp, err := next(ctx, req)
			m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			outcome := outcomeOK
			if err != nil {
				outcome = outcomeError
			}
			m.calls.WithLabelValues(method, outcome).Inc()
			return resp, err
		}
	}
}
