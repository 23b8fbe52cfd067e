package meridian

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults applied by the readers when the caller passes zero values.
const (
	// DefaultMaxPointBatch caps point ids per historical-value request.
	DefaultMaxPointBatch = 100

	// DefaultMaxConcurrentFacilities bounds the facility fan-out.
	DefaultMaxConcurrentFacilities = 4

	// DefaultReadWindow is the historical window when start is zero.
	DefaultReadWindow = 10 * time.Minute

	// DefaultRatesWindow is the rates window when start is zero.
	DefaultRatesWindow = 24 * time.Hour
)

// ReaderConfig tunes a MetricsReader or RatesReader. The zero value uses
// the package defaults.
type ReaderConfig struct {
	// Logger receives per-facility progress and failure logs.
	Logger *logrus.Logger

	// MaxPointBatch caps point ids per historical-value request, matching
	// the platform's batch limit.
	MaxPointBatch int

	// MaxConcurrentFacilities bounds how many facilities are queried at
	// once.
	MaxConcurrentFacilities int

	// StrictResolution fails a facility when a catalogued metric has no
	// alias on a matching device, instead of skipping that device.
	StrictResolution bool
}

// Sample is one interval bucket of a metric series. Valid is false for
// buckets the platform returned no data for; Value is then zero and
// carries no meaning.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Valid     bool      `json:"valid"`
}

// MetricSeries is the assembled series for one resolved point.
type MetricSeries struct {
	Metric      DeviceMetric `json:"metric"`
	Label       string       `json:"label"`
	DeviceID    string       `json:"device_id"`
	DeviceName  string       `json:"device_name"`
	DeviceAlias string       `json:"device_alias"`
	Samples     []Sample     `json:"samples"`
}

// FacilitySeries carries one facility's assembled series, or the error
// that kept the facility from producing any.
type FacilitySeries struct {
	Facility Facility       `json:"facility"`
	Series   []MetricSeries `json:"series,omitempty"`
	Err      error          `json:"-"`
}

// ReadResult maps facility short names to their series. Facilities that
// failed are present with Err set and no Series.
type ReadResult struct {
	Facilities map[string]*FacilitySeries `json:"facilities"`
}

// Failed returns the errors of facilities that produced no data, keyed by
// facility short name.
func (r *ReadResult) Failed() map[string]error {
	failed := make(map[string]error)
	for name, fs := range r.Facilities {
		if fs.Err != nil {
			failed[name] = fs.Err
		}
	}
	return failed
}

// MetricsReader is the high-level API for reading metric time series from
// the platform. A MetricsReader is safe for concurrent use.
type MetricsReader struct {
	api           PlatformAPI
	log           *logrus.Logger
	maxPointBatch int
	maxConcurrent int
	strict        bool
}

// NewMetricsReader builds a reader on top of api. Zero fields of cfg fall
// back to the package defaults.
func NewMetricsReader(api PlatformAPI, cfg ReaderConfig) *MetricsReader {
	return &MetricsReader{
		api:           api,
		log:           readerLogger(cfg.Logger),
		maxPointBatch: orDefault(cfg.MaxPointBatch, DefaultMaxPointBatch),
		maxConcurrent: orDefault(cfg.MaxConcurrentFacilities, DefaultMaxConcurrentFacilities),
		strict:        cfg.StrictResolution,
	}
}

func readerLogger(log *logrus.Logger) *logrus.Logger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Read resolves the filter and returns interval-aligned series for every
// selected facility over [start, end). A zero end means now; a zero start
// means end minus DefaultReadWindow. The interval must be a positive
// whole number of seconds.
//
// Facilities fail independently: a facility whose devices or readings
// cannot be fetched is reported through FacilitySeries.Err while the
// others return data. Read fails as a whole only when the filter is
// invalid, a named facility is unknown, every facility fails, or ctx is
// done.
func (r *MetricsReader) Read(ctx context.Context, filter Filter, start, end time.Time, interval time.Duration) (*ReadResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidFilter, interval)
	}
	if interval%time.Second != 0 {
		return nil, fmt.Errorf("%w: interval must be a whole number of seconds, got %s", ErrInvalidFilter, interval)
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-DefaultReadWindow)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidFilter,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	facilities, err := selectFacilities(ctx, r.api, filter.Facilities)
	if err != nil {
		return nil, err
	}

	slots := make([]*FacilitySeries, len(facilities))
	sem := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup
	for i, facility := range facilities {
		wg.Add(1)
		go func(i int, facility Facility) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				slots[i] = &FacilitySeries{Facility: facility, Err: ctx.Err()}
				return
			}
			slots[i] = r.readFacility(ctx, facility, filter.Metrics, start, end, interval)
		}(i, facility)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, queryErr(ctx)
	}

	result := &ReadResult{Facilities: make(map[string]*FacilitySeries, len(slots))}
	failed := 0
	var firstErr error
	for _, fs := range slots {
		result.Facilities[fs.Facility.ShortName] = fs
		if fs.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = fs.Err
			}
		}
	}
	if len(slots) > 0 && failed == len(slots) {
		return nil, fmt.Errorf("%w: %d of %d failed, first: %v", ErrAllFacilitiesFailed, failed, len(slots), firstErr)
	}
	return result, nil
}

// readFacility resolves and fetches one facility. Failures come back in
// the FacilitySeries marker, never as a partial series.
func (r *MetricsReader) readFacility(ctx context.Context, facility Facility, metrics []DeviceMetric, start, end time.Time, interval time.Duration) *FacilitySeries {
	fs := &FacilitySeries{Facility: facility}

	bindings, err := r.resolveFacility(ctx, facility, metrics)
	if err != nil {
		fs.Err = &FacilityError{Facility: facility.ShortName, Op: "resolve points", Err: err}
		r.log.WithFields(logrus.Fields{
			"facility": facility.ShortName,
			"error":    err,
		}).Warn("facility resolution failed")
		return fs
	}
	if len(bindings) == 0 {
		return fs
	}

	samples, err := r.fetchFacility(ctx, facility, bindings, start, end, interval)
	if err != nil {
		fs.Err = &FacilityError{Facility: facility.ShortName, Op: "fetch readings", Err: err}
		r.log.WithFields(logrus.Fields{
			"facility": facility.ShortName,
			"error":    err,
		}).Warn("facility fetch failed")
		return fs
	}

	fs.Series = make([]MetricSeries, 0, len(bindings))
	for _, binding := range bindings {
		fs.Series = append(fs.Series, assembleSeries(binding, samples[binding.PointID], start, end, interval))
	}
	return fs
}

// selectFacilities lists the user's facilities and narrows them to the
// requested short names. Empty names selects every facility that has an
// agent installed. The returned slice is sorted by short name.
func selectFacilities(ctx context.Context, api PlatformAPI, names []string) ([]Facility, error) {
	all, err := api.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing facilities: %w", err)
	}

	var selected []Facility
	if len(names) == 0 {
		for _, f := range all {
			if len(f.Agents) > 0 {
				selected = append(selected, f)
			}
		}
	} else {
		byName := make(map[string]Facility, len(all))
		for _, f := range all {
			byName[f.ShortName] = f
		}
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			f, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownFacility, name)
			}
			if len(f.Agents) == 0 {
				return nil, fmt.Errorf("%w: %q has no agent installed", ErrUnknownFacility, name)
			}
			selected = append(selected, f)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ShortName < selected[j].ShortName })
	return selected, nil
}
