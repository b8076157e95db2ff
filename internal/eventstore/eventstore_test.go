package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	versionQuery = `SELECT COALESCE\(MAX\(version\), 0\)`
	insertQuery  = `INSERT INTO events`
)

type testPayload struct {
	BillID int64 `json:"bill_id"`
}

func newMockStore(t *testing.T) (*EventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventStore(db), mock
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent("BillIssued", testPayload{BillID: 3})
	require.NoError(t, err)

	assert.Equal(t, "BillIssued", event.EventType)
	assert.JSONEq(t, `{"bill_id":3}`, string(event.EventData))
}

func TestAppendEvents(t *testing.T) {
	store, mock := newMockStore(t)
	aggregateID := uuid.New()

	first, err := NewEvent("BillIssued", testPayload{BillID: 1})
	require.NoError(t, err)
	second, err := NewEvent("PaymentApplied", testPayload{BillID: 1})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs(aggregateID).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	prep := mock.ExpectPrepare(insertQuery)
	prep.ExpectQuery().
		WithArgs(aggregateID, "billing_account", "BillIssued", sqlmock.AnyArg(), sqlmock.AnyArg(), 3, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(10)))
	prep.ExpectQuery().
		WithArgs(aggregateID, "billing_account", "PaymentApplied", sqlmock.AnyArg(), sqlmock.AnyArg(), 4, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	err = store.AppendEvents(context.Background(), aggregateID, "billing_account", 2, []Event{first, second})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEventsVersionConflict(t *testing.T) {
	store, mock := newMockStore(t)
	aggregateID := uuid.New()
	event, _ := NewEvent("BillIssued", testPayload{BillID: 1})

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs(aggregateID).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(5))
	mock.ExpectRollback()

	err := store.AppendEvents(context.Background(), aggregateID, "billing_account", 4, []Event{event})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEventsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	aggregateID := uuid.New()
	event, _ := NewEvent("BillIssued", testPayload{BillID: 1})

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs(aggregateID).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	mock.ExpectPrepare(insertQuery).ExpectQuery().
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := store.AppendEvents(context.Background(), aggregateID, "billing_account", 0, []Event{event})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEventsRejectsNegativeVersion(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.AppendEvents(context.Background(), uuid.New(), "billing_account", -1, []Event{{EventType: "x"}})
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadEvents(t *testing.T) {
	store, mock := newMockStore(t)
	aggregateID := uuid.New()
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "aggregate_id", "aggregate_type", "event_type", "event_data", "metadata", "version", "created_at",
	}).
		AddRow(int64(1), aggregateID.String(), "billing_account", "BillIssued", []byte(`{"bill_id":1}`), []byte(`{"source":"api"}`), 1, created).
		AddRow(int64(2), aggregateID.String(), "billing_account", "PaymentApplied", []byte(`{"bill_id":1}`), nil, 2, created)

	mock.ExpectQuery(`SELECT id, aggregate_id`).WithArgs(aggregateID, 1, 2).WillReturnRows(rows)

	events, err := store.LoadEvents(context.Background(), aggregateID, 1, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, aggregateID, events[0].AggregateID)
	assert.Equal(t, "api", events[0].Metadata["source"])
	assert.Equal(t, "PaymentApplied", events[1].EventType)
	assert.Equal(t, 2, events[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentVersion(t *testing.T) {
	store, mock := newMockStore(t)
	aggregateID := uuid.New()

	mock.ExpectQuery(versionQuery).WithArgs(aggregateID).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(7))

	version, err := store.GetCurrentVersion(context.Background(), aggregateID)
	require.NoError(t, err)
	assert.Equal(t, 7, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateIDs(t *testing.T) {
	store, mock := newMockStore(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT aggregate_id`).WithArgs("billing_account").
		WillReturnRows(sqlmock.NewRows([]string{"aggregate_id"}).AddRow(a.String()).AddRow(b.String()))
	ids, err := store.AggregateIDs(context.Background(), "billing_account")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	mock.ExpectQuery(`SELECT aggregate_id`).WithArgs("billing_account").
		WillReturnRows(sqlmock.NewRows([]string{"aggregate_id"}))
	ids, err = store.AggregateIDs(context.Background(), "billing_account")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	assert.NoError(t, mock.ExpectationsWereMet())
}
