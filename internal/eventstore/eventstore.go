// Package eventstore keeps per-aggregate event streams in PostgreSQL. Each
// stream is versioned from 1 and only ever grows.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

const uniqueViolation = "23505"

const (
	selectVersion = `SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1`
	insertEvent   = `
		INSERT INTO events (aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	selectEvents = `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at
		FROM events
		WHERE aggregate_id = $1 AND version >= $2
	`
)

// Schema creates the events table.
const Schema = `
	CREATE TABLE IF NOT EXISTS events (
		id             BIGSERIAL PRIMARY KEY,
		aggregate_id   UUID NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		event_data     JSONB NOT NULL,
		metadata       JSONB,
		version        INT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (aggregate_id, version)
	)
`

// Event is a journaled domain event.
type Event struct {
	ID            int64             `json:"id"`
	AggregateID   uuid.UUID         `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	EventType     string            `json:"event_type"`
	EventData     json.RawMessage   `json:"event_data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Version       int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewEvent marshals data into an event of the given type.
func NewEvent(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}
	return Event{EventType: eventType, EventData: raw}, nil
}

// EventStore journals events in PostgreSQL.
type EventStore struct {
	db     *sql.DB
	tracer trace.Tracer
	now    func() time.Time
}

// NewEventStore creates an event store on db.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		db:     db,
		tracer: otel.Tracer("swimclub/eventstore"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the events table if needed.
func (es *EventStore) Migrate(ctx context.Context) error {
	if _, err := es.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

// AppendEvents writes events as versions expectedVersion+1 onwards in one
// serializable transaction. Another writer getting there first, seen either
// as a version mismatch or as a unique key violation, is reported as
// ErrConcurrencyConflict.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateID uuid.UUID, aggregateType string, expectedVersion int, events []Event) error {
	ctx, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	switch {
	case expectedVersion < 0:
		return ErrInvalidVersion
	case len(events) == 0:
		return nil
	}

	tx, err := es.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	stored, err := versionOf(ctx, tx, aggregateID)
	if err != nil {
		return err
	}
	if stored != expectedVersion {
		span.SetAttributes(attribute.Int("stored.version", stored))
		return ErrConcurrencyConflict
	}

	insert, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	createdAt := es.now()
	for i, event := range events {
		version := expectedVersion + i + 1
		id, err := es.insert(ctx, insert, aggregateID, aggregateType, version, createdAt, event)
		if err != nil {
			return err
		}
		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", id),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit append: %w", err)
	}
	return nil
}

func (es *EventStore) insert(ctx context.Context, stmt *sql.Stmt, aggregateID uuid.UUID, aggregateType string, version int, createdAt time.Time, event Event) (int64, error) {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to encode metadata of version %d: %w", version, err)
	}

	var id int64
	err = stmt.QueryRowContext(ctx,
		aggregateID, aggregateType, event.EventType, []byte(event.EventData), metadata, version, createdAt,
	).Scan(&id)
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == uniqueViolation:
		return 0, ErrConcurrencyConflict
	case err != nil:
		return 0, fmt.Errorf("failed to insert version %d: %w", version, err)
	}
	return id, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func versionOf(ctx context.Context, q queryRower, aggregateID uuid.UUID) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, selectVersion, aggregateID).Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to read stream version: %w", err)
	}
	return version, nil
}

// LoadEvents reads a stream in version order from fromVersion through
// toVersion, or to its end when toVersion is 0.
func (es *EventStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query, args := selectEvents, []any{aggregateID, fromVersion}
	if toVersion > 0 {
		query += " AND version <= $3"
		args = append(args, toVersion)
	}
	rows, err := es.db.QueryContext(ctx, query+" ORDER BY version", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		e        Event
		data     []byte
		metadata []byte
	)
	if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &data, &metadata, &e.Version, &e.CreatedAt); err != nil {
		return Event{}, fmt.Errorf("failed to scan event: %w", err)
	}
	e.EventData = data
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return Event{}, fmt.Errorf("failed to decode metadata of event %d: %w", e.ID, err)
		}
	}
	return e, nil
}

// GetCurrentVersion is the highest version in the stream, 0 for a stream
// that does not exist yet.
func (es *EventStore) GetCurrentVersion(ctx context.Context, aggregateID uuid.UUID) (int, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.get_version",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID.String())),
	)
	defer span.End()

	version, err := versionOf(ctx, es.db, aggregateID)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

// AggregateIDs lists every aggregate of the given type that has events,
// ordered by its first event.
func (es *EventStore) AggregateIDs(ctx context.Context, aggregateType string) ([]uuid.UUID, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.aggregate_ids",
		trace.WithAttributes(attribute.String("aggregate.type", aggregateType)),
	)
	defer span.End()

	rows, err := es.db.QueryContext(ctx, `
		SELECT aggregate_id
		FROM events
		WHERE aggregate_type = $1
		GROUP BY aggregate_id
		ORDER BY MIN(id)
	`, aggregateType)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read aggregates: %w", err)
	}

	span.SetAttributes(attribute.Int("aggregates.found", len(ids)))
	return ids, nil
}
