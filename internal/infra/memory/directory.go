package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viajesandina/storefront-go/internal/domain"
)

// UserDirectory is a map-backed user directory.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[string]domain.UserProfile
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[string]domain.UserProfile)}
}

func (d *UserDirectory) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	profile, ok := d.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	p := profile
	return &p, nil
}

func (d *UserDirectory) Insert(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[profile.ID]; exists {
		return nil, &domain.ErrConflict{Message: "user already exists: " + profile.ID}
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	d.users[profile.ID] = profile

	p := profile
	return &p, nil
}
