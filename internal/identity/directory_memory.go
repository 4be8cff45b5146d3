package identity

import (
	"context"
	"fmt"
	"sync"

	id "passgate/pkg/domain"
	"passgate/pkg/platform/sentinel"
)

// InMemoryDirectory stores directory entries in memory for tests/dev.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[id.UserID]User
}

// NewInMemoryDirectory constructs an empty in-memory directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{users: make(map[id.UserID]User)}
}

// Add registers a user; existing entries are replaced.
func (d *InMemoryDirectory) Add(user User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *InMemoryDirectory) FindByID(_ context.Context, userID id.UserID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if user, ok := d.users[userID]; ok {
		return user, nil
	}
	return User{}, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
}

func (d *InMemoryDirectory) ListByRole(_ context.Context, role id.Role) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []User
	for _, user := range d.users {
		if user.Role == role {
			out = append(out, user)
		}
	}
	return out, nil
}
