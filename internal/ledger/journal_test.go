package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swimclub/internal/eventstore"
)

const (
	versionQuery = `SELECT COALESCE\(MAX\(version\), 0\)`
	insertQuery  = `INSERT INTO events`
)

func newMockJournal(t *testing.T) (*EventJournal, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventJournal(eventstore.NewEventStore(db)), mock
}

func expectAppend(mock sqlmock.Sqlmock, memberID uuid.UUID, current int, eventTypes ...string) {
	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs(memberID).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(current))
	prep := mock.ExpectPrepare(insertQuery)
	for i, eventType := range eventTypes {
		prep.ExpectQuery().
			WithArgs(memberID, AggregateType, eventType, sqlmock.AnyArg(), sqlmock.AnyArg(), current+i+1, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(current + i + 1)))
	}
	mock.ExpectCommit()
}

func mustEvent(t *testing.T, eventType string, data any) eventstore.Event {
	t.Helper()
	event, err := eventstore.NewEvent(eventType, data)
	require.NoError(t, err)
	return event
}

func TestEventJournalRecordCachesVersion(t *testing.T) {
	journal, mock := newMockJournal(t)
	member := uuid.New()
	ctx := context.Background()

	mock.ExpectQuery(versionQuery).WithArgs(member).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0))
	expectAppend(mock, member, 0, EventBillIssued)
	expectAppend(mock, member, 1, EventPaymentApplied, EventBillIssued)

	require.NoError(t, journal.Record(ctx, member, []eventstore.Event{
		mustEvent(t, EventBillIssued, BillIssuedEvent{BillID: 1, MemberID: member}),
	}))
	require.NoError(t, journal.Record(ctx, member, []eventstore.Event{
		mustEvent(t, EventPaymentApplied, PaymentAppliedEvent{PaymentID: 1, BillID: 1}),
		mustEvent(t, EventBillIssued, BillIssuedEvent{BillID: 2, MemberID: member, PredecessorID: 1}),
	}))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventJournalRetriesOnStaleVersion(t *testing.T) {
	journal, mock := newMockJournal(t)
	member := uuid.New()
	event := mustEvent(t, EventBillOverdue, BillOverdueEvent{BillID: 1})

	mock.ExpectQuery(versionQuery).WithArgs(member).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs(member).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	mock.ExpectRollback()
	mock.ExpectQuery(versionQuery).WithArgs(member).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	expectAppend(mock, member, 3, EventBillOverdue)

	require.NoError(t, journal.Record(context.Background(), member, []eventstore.Event{event}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventJournalRecordEmpty(t *testing.T) {
	journal, mock := newMockJournal(t)

	require.NoError(t, journal.Record(context.Background(), uuid.New(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventJournalHistory(t *testing.T) {
	journal, mock := newMockJournal(t)
	member := uuid.New()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "aggregate_id", "aggregate_type", "event_type", "event_data", "metadata", "version", "created_at",
	}).AddRow(int64(1), member.String(), AggregateType, EventBillIssued, []byte(`{"bill_id":1}`), nil, 1, created)
	mock.ExpectQuery(`SELECT id, aggregate_id`).WithArgs(member, 1).WillReturnRows(rows)

	events, err := journal.History(context.Background(), member)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventBillIssued, events[0].EventType)

	mock.ExpectQuery(`SELECT id, aggregate_id`).WithArgs(member, 1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "aggregate_id", "aggregate_type", "event_type", "event_data", "metadata", "version", "created_at",
		}))
	events, err = journal.History(context.Background(), member)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	assert.NoError(t, mock.ExpectationsWereMet())
}
