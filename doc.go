// Package meridian is the Go SDK for the Meridian facility-monitoring
// platform.
//
// # Architecture
//
// The SDK is structured in three layers:
//   - Client: low-level HTTP client for the platform API (auth, retries,
//     rate limiting)
//   - MetricsReader: filter resolution and historical metric queries
//   - RatesReader: hourly energy rate queries
//
// Key Features
//
//   - Declarative filters:
//     A Filter names facilities and device metrics, by catalogued name
//     or by point-alias regular expression, and the reader resolves it
//     to concrete points per facility and device.
//
//   - Interval-aligned series:
//     Samples come back on a fixed interval grid with absent buckets
//     made explicit, ready for charting or archival.
//
//   - Facility fan-out:
//     Facilities are queried concurrently with bounded parallelism, and
//     one failing facility does not fail the rest.
//
// Example Usage
//
//	client, err := meridian.NewClient(meridian.DefaultClientConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reader := meridian.NewMetricsReader(client, meridian.ReaderConfig{})
//	result, err := reader.Read(ctx, meridian.Filter{
//	    Facilities: []string{"plant-a"},
//	    Metrics: []meridian.DeviceMetric{
//	        meridian.NewDeviceMetric(meridian.KindCompressor, meridian.SuctionPressure),
//	    },
//	}, start, end, time.Minute)
//
// For the archival daemon built on the SDK, see cmd/meridian-collector.
package meridian
