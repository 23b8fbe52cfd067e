package meridian

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FacilityRates carries one facility's hourly rates, or the error that
// kept the facility from producing any.
type FacilityRates struct {
	Facility Facility     `json:"facility"`
	Rates    *HourlyRates `json:"rates,omitempty"`
	Err      error        `json:"-"`
}

// RatesResult maps facility short names to their hourly rates. Facilities
// that failed are present with Err set and no Rates.
type RatesResult struct {
	Facilities map[string]*FacilityRates `json:"facilities"`
}

// Failed returns the errors of facilities that produced no rates, keyed
// by facility short name.
func (r *RatesResult) Failed() map[string]error {
	failed := make(map[string]error)
	for name, fr := range r.Facilities {
		if fr.Err != nil {
			failed[name] = fr.Err
		}
	}
	return failed
}

// RatesReader is the high-level API for reading hourly energy rates from
// the platform. A RatesReader is safe for concurrent use.
type RatesReader struct {
	api           PlatformAPI
	log           *logrus.Logger
	maxConcurrent int
}

// NewRatesReader builds a reader on top of api. Zero fields of cfg fall
// back to the package defaults; MaxPointBatch and StrictResolution do not
// apply to rates.
func NewRatesReader(api PlatformAPI, cfg ReaderConfig) *RatesReader {
	return &RatesReader{
		api:           api,
		log:           readerLogger(cfg.Logger),
		maxConcurrent: orDefault(cfg.MaxConcurrentFacilities, DefaultMaxConcurrentFacilities),
	}
}

// Read returns hourly rates for every selected facility over [start,
// end). A zero end means now; a zero start means end minus
// DefaultRatesWindow.
//
// Facilities fail independently through FacilityRates.Err. Read fails as
// a whole only when a named facility is unknown, every facility fails, or
// ctx is done.
func (r *RatesReader) Read(ctx context.Context, filter RateFilter, start, end time.Time) (*RatesResult, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-DefaultRatesWindow)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidFilter,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	facilities, err := selectFacilities(ctx, r.api, filter.Facilities)
	if err != nil {
		return nil, err
	}

	slots := make([]*FacilityRates, len(facilities))
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
				slots[i] = &FacilityRates{Facility: facility, Err: ctx.Err()}
				return
			}
			slots[i] = r.readFacility(ctx, facility, start, end)
		}(i, facility)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, queryErr(ctx)
	}

	result := &RatesResult{Facilities: make(map[string]*FacilityRates, len(slots))}
	failed := 0
	var firstErr error
	for _, fr := range slots {
		result.Facilities[fr.Facility.ShortName] = fr
		if fr.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = fr.Err
			}
		}
	}
	if len(slots) > 0 && failed == len(slots) {
		return nil, fmt.Errorf("%w: %d of %d failed, first: %v", ErrAllFacilitiesFailed, failed, len(slots), firstErr)
	}
	return result, nil
}

func (r *RatesReader) readFacility(ctx context.Context, facility Facility, start, end time.Time) *FacilityRates {
	fr := &FacilityRates{Facility: facility}
	rates, err := r.api.GetHourlyRates(ctx, facility.OrganizationID, facility.Agents[0].AgentID, start, end)
	if err != nil {
		fr.Err = &FacilityError{Facility: facility.ShortName, Op: "fetch rates", Err: err}
		r.log.WithFields(logrus.Fields{
			"facility": facility.ShortName,
			"error":    err,
		}).Warn("facility rates fetch failed")
		return fr
	}
	fr.Rates = rates
	return fr
}
