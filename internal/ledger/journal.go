// internal/ledger/journal.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"swimclub/internal/eventstore"
)

// Journal persists ledger events per member before they take effect.
type Journal interface {
	Record(ctx context.Context, memberID uuid.UUID, events []eventstore.Event) error
}

// History reads back a member's journal.
type History interface {
	History(ctx context.Context, memberID uuid.UUID) ([]eventstore.Event, error)
}

// Source enumerates journaled member streams for a restore.
type Source interface {
	History
	Members(ctx context.Context) ([]uuid.UUID, error)
}

// EventJournal appends events to an event store, one billing_account
// stream per member. Share a single instance between writers of the same
// stream so the cached versions stay current.
type EventJournal struct {
	store *eventstore.EventStore

	mu       sync.Mutex
	versions map[uuid.UUID]int
}

func NewEventJournal(store *eventstore.EventStore) *EventJournal {
	return &EventJournal{
		store:    store,
		versions: make(map[uuid.UUID]int),
	}
}

// Record appends events at the member's current version. A stale cached
// version is refreshed from the store and the append retried once.
func (j *EventJournal) Record(ctx context.Context, memberID uuid.UUID, events []eventstore.Event) error {
	if len(events) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	version, ok := j.versions[memberID]
	if !ok {
		v, err := j.store.GetCurrentVersion(ctx, memberID)
		if err != nil {
			return fmt.Errorf("failed to read journal version: %w", err)
		}
		version = v
	}

	err := j.store.AppendEvents(ctx, memberID, AggregateType, version, events)
	if errors.Is(err, eventstore.ErrConcurrencyConflict) {
		version, err = j.store.GetCurrentVersion(ctx, memberID)
		if err != nil {
			return fmt.Errorf("failed to read journal version: %w", err)
		}
		err = j.store.AppendEvents(ctx, memberID, AggregateType, version, events)
	}
	if err != nil {
		delete(j.versions, memberID)
		return err
	}

	j.versions[memberID] = version + len(events)
	return nil
}

// History returns every event journaled for the member, oldest first.
func (j *EventJournal) History(ctx context.Context, memberID uuid.UUID) ([]eventstore.Event, error) {
	events, err := j.store.LoadEvents(ctx, memberID, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if events == nil {
		events = []eventstore.Event{}
	}

	j.mu.Lock()
	if _, ok := j.versions[memberID]; !ok && len(events) > 0 {
		j.versions[memberID] = events[len(events)-1].Version
	}
	j.mu.Unlock()
	return events, nil
}

// Members lists every member with a journaled stream, including members
// since removed from the directory.
func (j *EventJournal) Members(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := j.store.AggregateIDs(ctx, AggregateType)
	if err != nil {
		return nil, fmt.Errorf("failed to list journaled members: %w", err)
	}
	return ids, nil
}
