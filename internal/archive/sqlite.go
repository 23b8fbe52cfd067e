package archive

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS facility_readings (
    facility     TEXT    NOT NULL,
    device_id    TEXT    NOT NULL,
    device_name  TEXT    NOT NULL,
    device_kind  TEXT    NOT NULL,
    metric       TEXT    NOT NULL,
    time         DATETIME NOT NULL,
    value        REAL    NOT NULL
)`

const sqliteInsert = `
INSERT INTO facility_readings (facility, device_id, device_name, device_kind, metric, time, value)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// SQLiteStorage persists readings to a local SQLite file, useful for
// single-host deployments and field diagnostics.
type SQLiteStorage struct {
	sqlStorage
}

// NewSQLiteStorage opens (or creates) the database file and ensures the
// readings table exists. WAL mode keeps concurrent reads cheap while the
// collector writes.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating readings table: %w", err)
	}
	return &SQLiteStorage{sqlStorage{db: db, name: "sqlite", insertSQL: sqliteInsert}}, nil
}

var _ Storage = (*SQLiteStorage)(nil)
