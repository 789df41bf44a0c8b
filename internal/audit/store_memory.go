package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"skillhub/pkg/platform/sentinel"
)

// InMemoryStore keeps audit entries in memory for tests and local
// development. Entries are appended in order and never removed.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

func (s *InMemoryStore) FindByTarget(_ context.Context, targetType string, targetID uuid.UUID, action string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		e := s.entries[i]
		if e.TargetType == targetType && e.TargetID == targetID && e.Action == action {
			return &e, nil
		}
	}
	return nil, fmt.Errorf("audit entry not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByTarget(_ context.Context, targetType string, targetID uuid.UUID, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.entries[i]
		if e.TargetType == targetType && e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out, nil
}
