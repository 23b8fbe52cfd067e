// Package internal groups the packages behind the meridian-collector
// daemon. Nothing here is part of the SDK's public API.
//
// # Architecture
//
// The daemon is structured into several packages:
//   - archive: storage backends for collected readings
//   - collector: scheduled reads through the SDK
//   - config: daemon configuration, validation, and hot reload
//   - health: liveness, readiness, and metrics endpoints
//
// Key Features
//
//   - Scheduled Collection:
//     A cron-driven loop reads a trailing window of metric samples for
//     the configured facilities and forwards them to the archive.
//
//   - Pluggable Archives:
//     Readings fan out to any combination of PostgreSQL/TimescaleDB,
//     MySQL, SQLite, and MQTT backends, each independently configured.
//
//   - Hot Reload:
//     Facility and metric filters are re-read from the configuration
//     file while the daemon runs; schedule and storage changes require
//     a restart.
//
// Example Usage
//
//	coll := collector.New(reader, sink, filter, collector.Config{
//	    Schedule: "*/5 * * * *",
//	    Window:   10 * time.Minute,
//	    Interval: time.Minute,
//	}, logger, collector.NewMetrics(registry))
//	if err := coll.Start(); err != nil {
//	    logger.WithError(err).Fatal("scheduling failed")
//	}
//
// For more information about specific packages, see their respective
// documentation.
package internal
