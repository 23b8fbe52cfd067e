// Package archive persists collected facility readings.
//
// Architecture:
//   - A small Storage interface over pluggable backends
//   - SQL backends (PostgreSQL/TimescaleDB, MySQL, SQLite) sharing one
//     transactional batch-insert core
//   - An MQTT backend republishing readings for downstream consumers
//   - A Manager fanning each batch out to every configured backend
//
// Backends fail independently: the Manager logs a failed backend and keeps
// writing to the rest, so a flaky database never stalls collection.
//
// Example usage:
//
//	store, err := archive.OpenDatabase("postgres", dsn, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manager := archive.NewManager(logger, store)
//	defer manager.Close()
//
//	err = manager.Store(ctx, readings)
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Reading is one flattened, valid sample ready for storage.
type Reading struct {
	Facility   string    `json:"facility"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	DeviceKind string    `json:"device_kind"`
	Metric     string    `json:"metric"`
	Time       time.Time `json:"time"`
	Value      float64   `json:"value"`
}

// Storage persists batches of readings.
type Storage interface {
	// Store persists the batch, atomically where the backend supports it.
	Store(ctx context.Context, readings []Reading) error

	// Name identifies the backend in logs.
	Name() string

	// Close releases any resources held by the backend.
	Close() error
}

// Manager fans each batch out to every configured backend. A backend that
// fails is logged and skipped for that batch; Store reports an error only
// when no backend accepted the readings.
type Manager struct {
	backends []Storage
	logger   *logrus.Logger
}

// NewManager builds a manager over the given backends.
func NewManager(logger *logrus.Logger, backends ...Storage) *Manager {
	return &Manager{backends: backends, logger: logger}
}

// Store writes the batch to every backend.
func (m *Manager) Store(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 || len(m.backends) == 0 {
		return nil
	}
	failed := 0
	var firstErr error
	for _, backend := range m.backends {
		if err := backend.Store(ctx, readings); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			m.logger.WithFields(logrus.Fields{
				"backend": backend.Name(),
				"error":   err,
			}).Warn("archive backend rejected batch")
		}
	}
	if failed == len(m.backends) {
		return fmt.Errorf("all %d archive backends failed, first: %w", failed, firstErr)
	}
	return nil
}

// Name implements Storage.
func (m *Manager) Name() string { return "manager" }

// Close closes every backend and returns the first error encountered.
func (m *Manager) Close() error {
	var firstErr error
	for _, backend := range m.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Compile-time interface implementation check
var _ Storage = (*Manager)(nil)

// OpenDatabase opens the SQL backend named by driver: "postgres" (or
// "timescale"), "mysql", or "sqlite".
func OpenDatabase(driver, dsn string, logger *logrus.Logger) (Storage, error) {
	switch driver {
	case "postgres", "timescale":
		return NewPostgresStorage(dsn, logger)
	case "mysql":
		return NewMySQLStorage(dsn)
	case "sqlite", "sqlite3":
		return NewSQLiteStorage(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
