package archive

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStorage(t *testing.T) (*sqlStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &sqlStorage{db: db, name: "postgres", insertSQL: postgresInsert}, mock
}

func TestSQLStorageStore(t *testing.T) {
	store, mock := newMockStorage(t)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	readings := []Reading{
		{Facility: "plant-a", DeviceID: "dev-1", DeviceName: "Compressor 1", DeviceKind: "compressor", Metric: "SuctionPressure", Time: ts, Value: 41.5},
		{Facility: "plant-a", DeviceID: "dev-1", DeviceName: "Compressor 1", DeviceKind: "compressor", Metric: "SuctionPressure", Time: ts.Add(time.Minute), Value: 42.5},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(postgresInsert))
	prep.ExpectExec().
		WithArgs("plant-a", "dev-1", "Compressor 1", "compressor", "SuctionPressure", ts, 41.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("plant-a", "dev-1", "Compressor 1", "compressor", "SuctionPressure", ts.Add(time.Minute), 42.5).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Store(context.Background(), readings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorageStoreRollsBackOnError(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(postgresInsert))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Store(context.Background(), testReadings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert reading")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStorageStoreEmptyBatch(t *testing.T) {
	store, mock := newMockStorage(t)

	require.NoError(t, store.Store(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet(), "an empty batch never touches the database")
}

func TestSQLStorageStoreBeginFailure(t *testing.T) {
	store, mock := newMockStorage(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	err := store.Store(context.Background(), testReadings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}
