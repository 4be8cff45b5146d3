package guardian

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "passgate/pkg/domain"
	"passgate/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
// - Return sentinel.ErrConflict when an active link already exists for the pair
// - Return nil for successful operations
// InMemoryStore keeps guardian links in memory for tests/dev.
type InMemoryStore struct {
	mu    sync.RWMutex
	links map[id.LinkID]*Link
}

// NewInMemoryStore constructs an empty in-memory link store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{links: make(map[id.LinkID]*Link)}
}

func (s *InMemoryStore) Create(_ context.Context, link *Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.GuardianID == link.GuardianID &&
			existing.ResidentID == link.ResidentID &&
			existing.Status == LinkActive {
			return fmt.Errorf("active link exists for pair: %w", sentinel.ErrConflict)
		}
	}
	copied := *link
	s.links[link.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindActive(_ context.Context, guardianID, residentID id.UserID) (*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, link := range s.links {
		if link.GuardianID == guardianID && link.ResidentID == residentID && link.Status == LinkActive {
			copied := *link
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("guardian link not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) Deactivate(_ context.Context, guardianID, residentID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.links {
		if link.GuardianID == guardianID && link.ResidentID == residentID && link.Status == LinkActive {
			link.Status = LinkInactive
			link.UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("guardian link not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListActiveByGuardian(_ context.Context, guardianID id.UserID) ([]*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Link
	for _, link := range s.links {
		if link.GuardianID == guardianID && link.Status == LinkActive {
			copied := *link
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListActiveByResident(_ context.Context, residentID id.UserID) ([]*Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Link
	for _, link := range s.links {
		if link.ResidentID == residentID && link.Status == LinkActive {
			copied := *link
			out = append(out, &copied)
		}
	}
	return out, nil
}
