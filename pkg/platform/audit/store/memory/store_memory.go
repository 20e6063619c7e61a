package memory

import (
	"context"
	"sync"

	audit "vcanchor/pkg/platform/audit"
)

// InMemoryStore keeps events in process for tests and single-node runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListBySubject returns events about subjectDID in emission order.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectDID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.SubjectDID == subjectDID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListAll returns all events in emission order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}

// Types returns the event types in emission order. Handy for assertions.
func (s *InMemoryStore) Types() []audit.EventType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}
