package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryUserDirectory is an in-process UserDirectory used by tests, the CLI
// and deployments without Firebase Auth.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

var _ UserDirectory = (*MemoryUserDirectory)(nil)

// NewMemoryUserDirectory seeds the directory with users.
func NewMemoryUserDirectory(users ...User) *MemoryUserDirectory {
	d := &MemoryUserDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *MemoryUserDirectory) Put(user User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// GetUser returns ErrUnknownUser for unknown ids.
func (d *MemoryUserDirectory) GetUser(_ context.Context, userID string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[strings.TrimSpace(userID)]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	return user, nil
}
