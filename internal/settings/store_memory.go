package settings

import (
	"context"
	"sync"

	"passgate/pkg/platform/sentinel"
)

// InMemoryStore holds settings in memory for tests/dev.
type InMemoryStore struct {
	mu    sync.RWMutex
	saved *Settings
}

// NewInMemoryStore constructs an empty in-memory settings store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.saved == nil {
		return Settings{}, sentinel.ErrNotFound
	}
	return *s.saved, nil
}

func (s *InMemoryStore) Save(_ context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = &settings
	return nil
}
