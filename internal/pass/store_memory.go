package pass

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	id "passgate/pkg/domain"
	"passgate/pkg/platform/sentinel"
)

// InMemoryStore keeps gate passes in memory. Transitions hold the store
// mutex across the precondition check and the write, giving the same
// atomicity the conditional SQL updates provide.
//
// Error Contract:
//   - FindByID/FindByToken: sentinel.ErrNotFound when absent
//   - transition methods: sentinel.ErrNotFound, sentinel.ErrInvalidState,
//     sentinel.ErrConflict (duplicate QR token)
type InMemoryStore struct {
	mu      sync.RWMutex
	passes  map[id.PassID]*GatePass
	byToken map[string]id.PassID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		passes:  make(map[id.PassID]*GatePass),
		byToken: make(map[string]id.PassID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, pass *GatePass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.passes[pass.ID]; exists {
		return fmt.Errorf("gate pass %s: %w", pass.ID, sentinel.ErrConflict)
	}
	s.passes[pass.ID] = clone(pass)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, passID id.PassID) (*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pass, ok := s.passes[passID]
	if !ok {
		return nil, fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrNotFound)
	}
	return clone(pass), nil
}

func (s *InMemoryStore) FindByToken(_ context.Context, token string) (*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	passID, ok := s.byToken[token]
	if !ok {
		return nil, fmt.Errorf("gate pass token: %w", sentinel.ErrNotFound)
	}
	return clone(s.passes[passID]), nil
}

func (s *InMemoryStore) CountPending(_ context.Context, residentID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, pass := range s.passes {
		if pass.ResidentID == residentID && pass.Status.Pending() {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) HasOverlapping(_ context.Context, residentID id.UserID, from, to time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, pass := range s.passes {
		if pass.ResidentID != residentID {
			continue
		}
		if pass.Status != StatusApproved && !pass.Status.Pending() {
			continue
		}
		if pass.Overlaps(from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) GuardianApprove(_ context.Context, passID id.PassID, guardianID id.UserID, at time.Time) error {
	return s.transition(passID, []Status{StatusPendingGuardian}, func(pass *GatePass) {
		pass.Status = StatusPendingSupervisor
		pass.GuardianActedBy = &guardianID
		pass.GuardianActedAt = &at
		pass.UpdatedAt = at
	})
}

func (s *InMemoryStore) GuardianReject(_ context.Context, passID id.PassID, guardianID id.UserID, reason string, at time.Time) error {
	return s.transition(passID, []Status{StatusPendingGuardian}, func(pass *GatePass) {
		pass.Status = StatusRejected
		pass.GuardianActedBy = &guardianID
		pass.GuardianActedAt = &at
		pass.GuardianReason = reason
		pass.UpdatedAt = at
	})
}

func (s *InMemoryStore) SupervisorApprove(_ context.Context, passID id.PassID, supervisorID id.UserID, token string, at time.Time, allowedFrom []Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byToken[token]; taken {
		return fmt.Errorf("gate pass token: %w", sentinel.ErrConflict)
	}
	pass, ok := s.passes[passID]
	if !ok {
		return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrNotFound)
	}
	if !statusIn(pass.Status, allowedFrom) {
		return fmt.Errorf("gate pass %s in %s: %w", passID, pass.Status, sentinel.ErrInvalidState)
	}

	pass.Status = StatusApproved
	pass.QRToken = token
	pass.SupervisorActedBy = &supervisorID
	pass.SupervisorActedAt = &at
	pass.UpdatedAt = at
	s.byToken[token] = passID
	return nil
}

func (s *InMemoryStore) SupervisorReject(_ context.Context, passID id.PassID, supervisorID id.UserID, reason string, at time.Time, allowedFrom []Status) error {
	return s.transition(passID, allowedFrom, func(pass *GatePass) {
		pass.Status = StatusRejected
		pass.SupervisorActedBy = &supervisorID
		pass.SupervisorActedAt = &at
		pass.SupervisorReason = reason
		pass.UpdatedAt = at
	})
}

func (s *InMemoryStore) StampValidation(_ context.Context, passID id.PassID, actorID id.UserID, at time.Time) error {
	return s.transition(passID, []Status{StatusApproved}, func(pass *GatePass) {
		pass.ValidatedBy = &actorID
		pass.ValidatedAt = &at
	})
}

func (s *InMemoryStore) RecordExit(_ context.Context, passID id.PassID, actorID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pass, ok := s.passes[passID]
	if !ok {
		return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrNotFound)
	}
	if pass.Status != StatusApproved || pass.CurrentlyOutside() {
		return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrInvalidState)
	}

	pass.ExitAt = &at
	pass.ExitRecordedBy = &actorID
	// A fresh exit starts a new outside period.
	pass.EntryAt = nil
	pass.EntryRecordedBy = nil
	pass.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) RecordEntry(_ context.Context, passID id.PassID, actorID id.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pass, ok := s.passes[passID]
	if !ok {
		return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrNotFound)
	}
	if !pass.CurrentlyOutside() {
		return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrInvalidState)
	}

	pass.EntryAt = &at
	pass.EntryRecordedBy = &actorID
	pass.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status Status, page Page) ([]*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*GatePass
	for _, pass := range s.passes {
		if pass.Status == status {
			out = append(out, clone(pass))
		}
	}
	sortNewestFirst(out)
	return paginate(out, page), nil
}

func (s *InMemoryStore) ListPendingForResidents(_ context.Context, residentIDs []id.UserID) ([]*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[id.UserID]bool, len(residentIDs))
	for _, residentID := range residentIDs {
		wanted[residentID] = true
	}
	var out []*GatePass
	for _, pass := range s.passes {
		if wanted[pass.ResidentID] && pass.Status.Pending() {
			out = append(out, clone(pass))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListByResident(_ context.Context, residentID id.UserID, page Page) ([]*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*GatePass
	for _, pass := range s.passes {
		if pass.ResidentID == residentID {
			out = append(out, clone(pass))
		}
	}
	sortNewestFirst(out)
	return paginate(out, page), nil
}

func (s *InMemoryStore) ListHistory(_ context.Context, page Page) ([]*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*GatePass, 0, len(s.passes))
	for _, pass := range s.passes {
		out = append(out, clone(pass))
	}
	sortNewestFirst(out)
	return paginate(out, page), nil
}

func (s *InMemoryStore) ListCurrentlyOutside(_ context.Context) ([]*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*GatePass
	for _, pass := range s.passes {
		if pass.CurrentlyOutside() {
			out = append(out, clone(pass))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) ListEntriesSince(_ context.Context, since time.Time) ([]*GatePass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*GatePass
	for _, pass := range s.passes {
		if pass.EntryAt != nil && !pass.EntryAt.Before(since) {
			out = append(out, clone(pass))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *InMemoryStore) transition(passID id.PassID, allowedFrom []Status, apply func(*GatePass)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pass, ok := s.passes[passID]
	if !ok {
		return fmt.Errorf("gate pass %s: %w", passID, sentinel.ErrNotFound)
	}
	if !statusIn(pass.Status, allowedFrom) {
		return fmt.Errorf("gate pass %s in %s: %w", passID, pass.Status, sentinel.ErrInvalidState)
	}
	apply(pass)
	return nil
}

func statusIn(status Status, allowed []Status) bool {
	for _, candidate := range allowed {
		if status == candidate {
			return true
		}
	}
	return false
}

func sortNewestFirst(passes []*GatePass) {
	sort.Slice(passes, func(i, j int) bool {
		if !passes[i].CreatedAt.Equal(passes[j].CreatedAt) {
			return passes[i].CreatedAt.After(passes[j].CreatedAt)
		}
		return passes[i].ID.String() > passes[j].ID.String()
	})
}

func paginate(passes []*GatePass, page Page) []*GatePass {
	if page.Limit <= 0 {
		return passes
	}
	if page.Offset >= len(passes) {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(passes) {
		end = len(passes)
	}
	return passes[page.Offset:end]
}

func clone(pass *GatePass) *GatePass {
	copied := *pass
	copied.GuardianActedBy = cloneUser(pass.GuardianActedBy)
	copied.GuardianActedAt = cloneTime(pass.GuardianActedAt)
	copied.SupervisorActedBy = cloneUser(pass.SupervisorActedBy)
	copied.SupervisorActedAt = cloneTime(pass.SupervisorActedAt)
	copied.ValidatedBy = cloneUser(pass.ValidatedBy)
	copied.ValidatedAt = cloneTime(pass.ValidatedAt)
	copied.ExitAt = cloneTime(pass.ExitAt)
	copied.ExitRecordedBy = cloneUser(pass.ExitRecordedBy)
	copied.EntryAt = cloneTime(pass.EntryAt)
	copied.EntryRecordedBy = cloneUser(pass.EntryRecordedBy)
	return &copied
}

func cloneUser(v *id.UserID) *id.UserID {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}
