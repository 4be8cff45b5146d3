package attendance

import (
	"context"
	"fmt"
	"sync"

	id "passgate/pkg/domain"
	"passgate/pkg/platform/sentinel"
)

// InMemoryStore keeps attendance records in memory. Used in tests and local
// development.
//
// Error Contract:
//   - Create: sentinel.ErrAlreadyUsed when (resident, day) already exists
//   - FindByResidentAndDay: sentinel.ErrNotFound when absent
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record // key: residentID + "|" + day
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func key(residentID id.UserID, day string) string {
	return residentID.String() + "|" + day
}

func (s *InMemoryStore) Create(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(record.ResidentID, record.Day)
	if _, exists := s.records[k]; exists {
		return fmt.Errorf("attendance record for day %s: %w", record.Day, sentinel.ErrAlreadyUsed)
	}
	s.records[k] = record
	return nil
}

func (s *InMemoryStore) FindByResidentAndDay(_ context.Context, residentID id.UserID, day string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key(residentID, day)]
	if !ok {
		return Record{}, fmt.Errorf("attendance record for day %s: %w", day, sentinel.ErrNotFound)
	}
	return record, nil
}

func (s *InMemoryStore) ListByDay(_ context.Context, day string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, record := range s.records {
		if record.Day == day {
			out = append(out, record)
		}
	}
	return out, nil
}
