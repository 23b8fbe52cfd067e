package meridian

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics instruments platform requests. Pass the same instance to
// every Client that should share the counters.
type ClientMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// NewClientMetrics builds the request metrics and registers them with reg
// when reg is non-nil.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_client_requests_total",
				Help: "Total platform API requests by operation and status code.",
			},
			[]string{"operation", "code"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meridian_client_request_duration_seconds",
				Help:    "Platform API request latency by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Latency)
	}
	return m
}

func (m *ClientMetrics) observe(op string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, strconv.Itoa(code)).Inc()
	m.Latency.WithLabelValues(op).Observe(elapsed.Seconds())
}
