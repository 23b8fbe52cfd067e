package meridian

import "time"

// numBuckets returns ceil((end-start)/interval).
func numBuckets(start, end time.Time, interval time.Duration) int {
	span := end.Sub(start)
	n := int(span / interval)
	if span%interval != 0 {
		n++
	}
	return n
}

// assembleSeries aligns raw samples onto the interval grid of
// [start, end). Every bucket is present in the output; buckets without a
// sample are explicit with Valid false. When several samples land in the
// same bucket the first wins, and samples outside the window are dropped.
// The platform already aggregated within each interval, so no averaging
// happens here.
func assembleSeries(binding PointBinding, raw []rawSample, start, end time.Time, interval time.Duration) MetricSeries {
	n := numBuckets(start, end, interval)
	samples := make([]Sample, n)
	for i := range samples {
		samples[i].Timestamp = start.Add(time.Duration(i) * interval)
	}
	for _, rs := range raw {
		offset := time.Unix(rs.ts, 0).Sub(start)
		if offset < 0 {
			continue
		}
		idx := int(offset / interval)
		if idx >= n || samples[idx].Valid {
			continue
		}
		samples[idx].Value = rs.value
		samples[idx].Valid = true
	}
	return MetricSeries{
		Metric:      binding.Metric,
		Label:       binding.Label,
		DeviceID:    binding.Device.ID,
		DeviceName:  binding.Device.Name,
		DeviceAlias: binding.Device.Alias,
		Samples:     samples,
	}
}
