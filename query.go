package meridian

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// rawSample is one platform sample before interval alignment.
type rawSample struct {
	ts    int64 // Unix seconds
	value float64
}

// fetchFacility assigns point ids to the bindings and fetches all samples
// for them over [start, end), batching below the platform limit and
// following pagination. Aliases the agent cannot resolve keep an empty
// PointID and simply produce no samples. The result maps point id to raw
// samples.
func (r *MetricsReader) fetchFacility(ctx context.Context, facility Facility, bindings []PointBinding, start, end time.Time, interval time.Duration) (map[string][]rawSample, error) {
	agentID := facility.Agents[0].AgentID

	aliases := make([]string, 0, len(bindings))
	seen := make(map[string]struct{}, len(bindings))
	for _, b := range bindings {
		if _, dup := seen[b.Alias]; dup {
			continue
		}
		seen[b.Alias] = struct{}{}
		aliases = append(aliases, b.Alias)
	}

	pointIDs, err := r.api.GetPointIDs(ctx, facility.OrganizationID, agentID, aliases)
	if err != nil {
		return nil, fmt.Errorf("resolving point ids: %w", err)
	}
	for i := range bindings {
		bindings[i].PointID = pointIDs[bindings[i].Alias]
	}

	ids := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		if id := pointIDs[alias]; id != "" {
			ids = append(ids, id)
		}
	}
	if unresolved := len(aliases) - len(ids); unresolved > 0 {
		r.log.WithFields(logrus.Fields{
			"facility":   facility.ShortName,
			"unresolved": unresolved,
		}).Warn("some point aliases did not resolve to ids")
	}

	samples := make(map[string][]rawSample, len(ids))
	for _, batch := range batchStrings(ids, r.maxPointBatch) {
		if err := r.fetchBatch(ctx, facility, agentID, batch, start, end, interval, samples); err != nil {
			return nil, err
		}
	}
	return samples, nil
}

// fetchBatch accumulates every page of one batch into samples.
func (r *MetricsReader) fetchBatch(ctx context.Context, facility Facility, agentID string, batch []string, start, end time.Time, interval time.Duration, samples map[string][]rawSample) error {
	token := ""
	for page := 0; ; page++ {
		resp, err := r.api.GetHistoricalValues(ctx, facility.OrganizationID, agentID, HistoricalRequest{
			PointIDs:    batch,
			Start:       start,
			End:         end,
			Interval:    interval,
			AggregateBy: []AggregateBy{AggregateAvg},
			PageToken:   token,
		})
		if err != nil {
			return fmt.Errorf("fetching readings (page %d): %w", page, err)
		}
		for _, hv := range resp.Values {
			if hv.PointID == "" {
				continue
			}
			samples[hv.PointID] = append(samples[hv.PointID], extractSamples(hv)...)
		}
		if resp.Next == "" {
			return nil
		}
		token = resp.Next
	}
}

// extractSamples flattens the averaged values of one point. Discrete
// samples map to 1 and 0.
func extractSamples(hv HistoricalValues) []rawSample {
	pv, ok := hv.Values[AggregateAvg]
	if !ok {
		return nil
	}
	switch {
	case pv.Analog != nil:
		n := len(pv.Analog.Timestamps)
		if len(pv.Analog.Values) < n {
			n = len(pv.Analog.Values)
		}
		out := make([]rawSample, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, rawSample{ts: pv.Analog.Timestamps[i], value: pv.Analog.Values[i]})
		}
		return out
	case pv.Discrete != nil:
		n := len(pv.Discrete.Timestamps)
		if len(pv.Discrete.Values) < n {
			n = len(pv.Discrete.Values)
		}
		out := make([]rawSample, 0, n)
		for i := 0; i < n; i++ {
			value := 0.0
			if pv.Discrete.Values[i] {
				value = 1
			}
			out = append(out, rawSample{ts: pv.Discrete.Timestamps[i], value: value})
		}
		return out
	default:
		return nil
	}
}

// batchStrings splits ids into chunks of at most size.
func batchStrings(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
