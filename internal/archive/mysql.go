package archive

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS facility_readings (
    facility     VARCHAR(128) NOT NULL,
    device_id    VARCHAR(128) NOT NULL,
    device_name  VARCHAR(255) NOT NULL,
    device_kind  VARCHAR(64)  NOT NULL,
    metric       VARCHAR(255) NOT NULL,
    time         DATETIME     NOT NULL,
    value        DOUBLE       NOT NULL
)`

const mysqlInsert = `
INSERT INTO facility_readings (facility, device_id, device_name, device_kind, metric, time, value)
VALUES (?, ?, ?, ?, ?, ?, ?)`

// MySQLStorage persists readings to MySQL or MariaDB.
type MySQLStorage struct {
	sqlStorage
}

// NewMySQLStorage connects, verifies connectivity, and ensures the
// readings table exists. The DSN should include parseTime=true so the
// driver round-trips DATETIME columns as time.Time.
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(mysqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating readings table: %w", err)
	}
	return &MySQLStorage{sqlStorage{db: db, name: "mysql", insertSQL: mysqlInsert}}, nil
}

var _ Storage = (*MySQLStorage)(nil)
