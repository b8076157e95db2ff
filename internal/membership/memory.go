// internal/membership/memory.go
package membership

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// memoryStore keeps members in a map. Used when no database is configured.
type memoryStore struct {
	mu      sync.RWMutex
	members map[uuid.UUID]Member
}

// NewMemoryStore creates an empty in-memory member store.
func NewMemoryStore() Store {
	return &memoryStore{members: make(map[uuid.UUID]Member)}
}

func (s *memoryStore) FindByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("member with ID %s: %w", id, ErrMemberNotFound)
	}
	return &m, nil
}

// FindAll returns members ordered by creation time, then id.
func (s *memoryStore) FindAll(ctx context.Context) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *memoryStore) Save(ctx context.Context, m Member) error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("member id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Email != "" {
		for id, other := range s.members {
			if id != m.ID && strings.EqualFold(other.Email, m.Email) {
				return fmt.Errorf("%s: %w", m.Email, ErrDuplicateEmail)
			}
		}
	}
	s.members[m.ID] = m
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[id]; !ok {
		return fmt.Errorf("member with ID %s: %w", id, ErrMemberNotFound)
	}
	delete(s.members, id)
	return nil
}
