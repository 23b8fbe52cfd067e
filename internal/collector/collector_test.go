package collector

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	meridian "github.com/meridianlive/meridian-go"
	"github.com/meridianlive/meridian-go/internal/archive"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type stubSource struct {
	result    *meridian.ReadResult
	err       error
	filters   []meridian.Filter
	windows   []time.Duration
	intervals []time.Duration
}

func (s *stubSource) Read(ctx context.Context, filter meridian.Filter, start, end time.Time, interval time.Duration) (*meridian.ReadResult, error) {
	s.filters = append(s.filters, filter)
	s.windows = append(s.windows, end.Sub(start))
	s.intervals = append(s.intervals, interval)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubSink struct {
	err     error
	batches [][]archive.Reading
}

func (s *stubSink) Store(ctx context.Context, readings []archive.Reading) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, readings)
	return nil
}

func suctionFilter() meridian.Filter {
	return meridian.Filter{
		Metrics: []meridian.DeviceMetric{meridian.NewDeviceMetric(meridian.KindCompressor, meridian.SuctionPressure)},
	}
}

// sampleResult has one healthy facility with a gap bucket and one failed
// facility.
func sampleResult() *meridian.ReadResult {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &meridian.ReadResult{Facilities: map[string]*meridian.FacilitySeries{
		"plant-a": {
			Facility: meridian.Facility{ShortName: "plant-a"},
			Series: []meridian.MetricSeries{{
				Metric:      meridian.NewDeviceMetric(meridian.KindCompressor, meridian.SuctionPressure),
				Label:       "SuctionPressure",
				DeviceID:    "dev-1",
				DeviceName:  "Compressor 1",
				DeviceAlias: "C1",
				Samples: []meridian.Sample{
					{Timestamp: start, Value: 41.5, Valid: true},
					{Timestamp: start.Add(time.Minute)},
					{Timestamp: start.Add(2 * time.Minute), Value: 42.5, Valid: true},
				},
			}},
		},
		"plant-b": {
			Facility: meridian.Facility{ShortName: "plant-b"},
			Err:      &meridian.FacilityError{Facility: "plant-b", Op: "fetch readings", Err: errors.New("agent offline")},
		},
	}}
}

func newTestCollector(source *stubSource, sink *stubSink, metrics *Metrics) *Collector {
	return New(source, sink, suctionFilter(), Config{
		Schedule: "*/5 * * * *",
		Window:   5 * time.Minute,
		Interval: time.Minute,
	}, testLogger(), metrics)
}

func TestCollectStoresValidSamples(t *testing.T) {
	source := &stubSource{result: sampleResult()}
	sink := &stubSink{}
	metrics := NewMetrics(prometheus.NewRegistry())
	c := newTestCollector(source, sink, metrics)

	require.NoError(t, c.Collect(context.Background()))

	require.Len(t, source.windows, 1)
	assert.Equal(t, 5*time.Minute, source.windows[0])
	assert.Equal(t, time.Minute, source.intervals[0])

	require.Len(t, sink.batches, 1)
	readings := sink.batches[0]
	require.Len(t, readings, 2, "gap buckets are dropped")
	assert.Equal(t, "plant-a", readings[0].Facility)
	assert.Equal(t, "dev-1", readings[0].DeviceID)
	assert.Equal(t, "Compressor 1", readings[0].DeviceName)
	assert.Equal(t, "compressor", readings[0].DeviceKind)
	assert.Equal(t, "SuctionPressure", readings[0].Metric)
	assert.Equal(t, 41.5, readings[0].Value)
	assert.Equal(t, 42.5, readings[1].Value)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Collections.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Archived))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FacilityErrors))

	status := c.Status()
	require.True(t, status.Ran)
	assert.NoError(t, status.LastErr)
	assert.False(t, status.LastRun.IsZero())
}

func TestCollectReportsReadFailure(t *testing.T) {
	source := &stubSource{err: errors.New("platform unreachable")}
	sink := &stubSink{}
	metrics := NewMetrics(prometheus.NewRegistry())
	c := newTestCollector(source, sink, metrics)

	err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Empty(t, sink.batches)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Collections.WithLabelValues("error")))

	status := c.Status()
	require.True(t, status.Ran)
	assert.Error(t, status.LastErr)
}

func TestCollectReportsStoreFailure(t *testing.T) {
	source := &stubSource{result: sampleResult()}
	sink := &stubSink{err: errors.New("disk full")}
	c := newTestCollector(source, sink, nil)

	err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storing 2 readings")
}

func TestCollectWithoutMetrics(t *testing.T) {
	source := &stubSource{result: sampleResult()}
	c := newTestCollector(source, &stubSink{}, nil)

	assert.NotPanics(t, func() {
		require.NoError(t, c.Collect(context.Background()))
	})
}

func TestSetFilter(t *testing.T) {
	source := &stubSource{result: sampleResult()}
	c := newTestCollector(source, &stubSink{}, nil)

	next := meridian.Filter{
		Facilities: []string{"plant-a"},
		Metrics:    []meridian.DeviceMetric{meridian.NewDeviceMetric(meridian.KindCondenser, meridian.DischargePressure)},
	}
	require.NoError(t, c.SetFilter(next))
	require.NoError(t, c.Collect(context.Background()))

	require.Len(t, source.filters, 1)
	assert.Equal(t, next, source.filters[0])
}

func TestSetFilterRejectsInvalid(t *testing.T) {
	c := newTestCollector(&stubSource{}, &stubSink{}, nil)

	err := c.SetFilter(meridian.Filter{})
	assert.ErrorIs(t, err, meridian.ErrInvalidFilter)
	assert.Equal(t, suctionFilter(), c.Filter(), "the previous filter stays in effect")
}

func TestStatusBeforeFirstRun(t *testing.T) {
	c := newTestCollector(&stubSource{}, &stubSink{}, nil)

	assert.False(t, c.Status().Ran)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	c := New(&stubSource{}, &stubSink{}, suctionFilter(), Config{
		Schedule: "every fortnight",
		Window:   5 * time.Minute,
		Interval: time.Minute,
	}, testLogger(), nil)

	err := c.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduling")
}
