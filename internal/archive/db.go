package archive

import (
	"context"
	"database/sql"
	"fmt"
)

// sqlStorage is the shared core of the SQL backends. Dialects differ only
// in their DDL and placeholder syntax; batch insertion is identical.
type sqlStorage struct {
	db        *sql.DB
	name      string
	insertSQL string
}

// Store performs bulk insertion inside a single transaction.
//
// The operation is atomic: either every reading in the batch is inserted
// or none are. Uses a prepared statement to keep round trips down.
func (s *sqlStorage) Store(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // rollback if not committed

	stmt, err := tx.PrepareContext(ctx, s.insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.Facility, r.DeviceID, r.DeviceName, r.DeviceKind, r.Metric, r.Time, r.Value); err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *sqlStorage) Name() string { return s.name }

// Close releases all database resources.
func (s *sqlStorage) Close() error { return s.db.Close() }
