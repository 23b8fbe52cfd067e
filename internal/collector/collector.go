// Package collector schedules periodic reads through the SDK and forwards
// the resulting samples to the archive.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	meridian "github.com/meridianlive/meridian-go"
	"github.com/meridianlive/meridian-go/internal/archive"
)

// runTimeout bounds a single collection run.
const runTimeout = 2 * time.Minute

// Source reads metric series from the platform.
type Source interface {
	Read(ctx context.Context, filter meridian.Filter, start, end time.Time, interval time.Duration) (*meridian.ReadResult, error)
}

var _ Source = (*meridian.MetricsReader)(nil)

// Sink receives the flattened readings of each run.
type Sink interface {
	Store(ctx context.Context, readings []archive.Reading) error
}

// Config tunes the collection loop.
type Config struct {
	// Schedule is a standard five-field cron expression.
	Schedule string

	// Window is the trailing time range each run covers.
	Window time.Duration

	// Interval is the sample granularity requested from the platform.
	Interval time.Duration
}

// Collector drives scheduled collection runs. The filter can be swapped at
// runtime; everything else is fixed at construction.
type Collector struct {
	source   Source
	sink     Sink
	logger   *logrus.Logger
	metrics  *Metrics
	cron     *cron.Cron
	schedule string
	window   time.Duration
	interval time.Duration

	mu      sync.RWMutex
	filter  meridian.Filter
	lastRun time.Time
	lastErr error
	ran     bool
}

// New builds a collector. The filter must already be valid.
func New(source Source, sink Sink, filter meridian.Filter, cfg Config, logger *logrus.Logger, metrics *Metrics) *Collector {
	return &Collector{
		source:   source,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		cron:     cron.New(),
		schedule: cfg.Schedule,
		window:   cfg.Window,
		interval: cfg.Interval,
		filter:   filter,
	}
}

// Start registers the cron entry and begins scheduling runs.
func (c *Collector) Start() error {
	_, err := c.cron.AddFunc(c.schedule, c.run)
	if err != nil {
		return fmt.Errorf("scheduling %q: %w", c.schedule, err)
	}
	c.cron.Start()
	return nil
}

// Stop halts scheduling. A run already in progress finishes on its own.
func (c *Collector) Stop() {
	c.cron.Stop()
}

// SetFilter swaps the filter used by subsequent runs. An invalid filter is
// rejected and the current one stays in effect.
func (c *Collector) SetFilter(filter meridian.Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
	return nil
}

// Filter returns the filter currently in effect.
func (c *Collector) Filter() meridian.Filter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// Status is a snapshot of the collector's most recent run. Ran is false
// until the first run completes.
type Status struct {
	LastRun time.Time
	LastErr error
	Ran     bool
}

// Status reports when the most recent run started and how it ended.
func (c *Collector) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{LastRun: c.lastRun, LastErr: c.lastErr, Ran: c.ran}
}

func (c *Collector) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := c.Collect(ctx); err != nil {
		c.logger.WithError(err).Error("collection run failed")
	}
}

// Collect performs one collection run over the trailing window.
func (c *Collector) Collect(ctx context.Context) error {
	started := time.Now()
	end := started
	start := end.Add(-c.window)

	result, err := c.source.Read(ctx, c.Filter(), start, end, c.interval)
	if err != nil {
		c.finish(started, err)
		return err
	}

	failed := result.Failed()
	for name, ferr := range failed {
		c.logger.WithFields(logrus.Fields{
			"facility": name,
			"error":    ferr,
		}).Warn("facility produced no data this run")
	}
	c.metrics.facilityErrors(len(failed))

	readings := flatten(result)
	if len(readings) > 0 {
		if err := c.sink.Store(ctx, readings); err != nil {
			err = fmt.Errorf("storing %d readings: %w", len(readings), err)
			c.finish(started, err)
			return err
		}
	}
	c.metrics.archived(len(readings))
	c.finish(started, nil)

	c.logger.WithFields(logrus.Fields{
		"facilities": len(result.Facilities),
		"readings":   len(readings),
	}).Info("collection run complete")
	return nil
}

func (c *Collector) finish(started time.Time, err error) {
	c.mu.Lock()
	c.lastRun = started
	c.lastErr = err
	c.ran = true
	c.mu.Unlock()
	c.metrics.run(err, time.Since(started))
}

// flatten turns a read result into archive rows, dropping buckets the
// platform had no data for.
func flatten(result *meridian.ReadResult) []archive.Reading {
	var readings []archive.Reading
	for _, fs := range result.Facilities {
		for _, series := range fs.Series {
			for _, sample := range series.Samples {
				if !sample.Valid {
					continue
				}
				readings = append(readings, archive.Reading{
					Facility:   fs.Facility.ShortName,
					DeviceID:   series.DeviceID,
					DeviceName: series.DeviceName,
					DeviceKind: string(series.Metric.DeviceKind),
					Metric:     series.Label,
					Time:       sample.Timestamp,
					Value:      sample.Value,
				})
			}
		}
	}
	return readings
}
