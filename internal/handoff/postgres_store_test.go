package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRecordStoreDeliver(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := finalRecord(t)
	mock.ExpectExec("INSERT INTO intake_records").
		WithArgs("call-1", rec.EventID, EventTypeFinalized, "rules", []string{"phone"}, pgxmock.AnyArg(), rec.FinalizedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPostgresRecordStore(mock)
	require.NoError(t, store.Deliver(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStoreDeliverError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO intake_records").WillReturnError(errors.New("connection reset"))
	store := NewPostgresRecordStore(mock)
	err = store.Deliver(context.Background(), finalRecord(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Error(t, store.Deliver(context.Background(), Record{}), "missing session id")
}

func TestPostgresRecordStoreLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := finalRecord(t)
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT record FROM intake_records").
		WithArgs("call-1").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(data))
	mock.ExpectQuery("SELECT record FROM intake_records").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresRecordStore(mock)
	got, err := store.Load(context.Background(), "call-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.EventID, got.EventID)

	got, err = store.Load(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordStoreDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM intake_records").
		WithArgs("call-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, NewPostgresRecordStore(mock).Delete(context.Background(), "call-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
