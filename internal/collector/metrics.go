package collector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments the collection loop.
type Metrics struct {
	Collections    *prometheus.CounterVec
	Archived       prometheus.Counter
	FacilityErrors prometheus.Counter
	RunDuration    prometheus.Histogram
}

// NewMetrics builds the collector metrics and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Collections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_collector_collections_total",
				Help: "Collection runs by outcome.",
			},
			[]string{"status"},
		),
		Archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_collector_samples_archived_total",
			Help: "Valid samples forwarded to the archive.",
		}),
		FacilityErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_collector_facility_errors_total",
			Help: "Facilities that produced no data in a run.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_collector_run_duration_seconds",
			Help:    "Collection run duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Collections, m.Archived, m.FacilityErrors, m.RunDuration)
	}
	return m
}

func (m *Metrics) run(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Collections.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) archived(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Archived.Add(float64(n))
}

func (m *Metrics) facilityErrors(n int) {
	if m == nil || n == 0 {
		return
	}
	m.FacilityErrors.Add(float64(n))
}
