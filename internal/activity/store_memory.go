package activity

import (
	"context"
	"sort"
	"sync"

	id "passgate/pkg/domain"
)

// InMemoryStore keeps ledger events in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []*Event
}

// NewInMemoryStore constructs an empty in-memory ledger.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := event
	s.events = append(s.events, &copied)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter, page Page) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	for _, event := range s.events {
		if !filter.ResidentID.IsNil() && event.ResidentID != filter.ResidentID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, event.Action) {
			continue
		}
		if !filter.From.IsZero() && event.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !event.Timestamp.Before(filter.To) {
			continue
		}
		matched = append(matched, *event)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return paginate(matched, page), nil
}

func (s *InMemoryStore) ListByPass(_ context.Context, passID id.PassID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Event
	for _, event := range s.events {
		if event.PassID == passID {
			matched = append(matched, *event)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched, nil
}

func containsAction(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

func paginate(events []Event, page Page) []Event {
	if page.Limit <= 0 {
		page.Limit = 20
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	if page.Offset >= len(events) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(events) {
		end = len(events)
	}
	return events[page.Offset:end]
}
