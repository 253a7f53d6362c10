package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	repository "zenchatty/internal/repository/port"
)

type friendPair struct{ a, b string }

// MemoryUserRepository is an in-process user directory.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	users   map[string]repository.User
	friends map[friendPair]struct{}
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:   map[string]repository.User{},
		friends: map[friendPair]struct{}{},
	}
}

var _ repository.UserRepository = (*MemoryUserRepository)(nil)

func (r *MemoryUserRepository) Create(_ context.Context, user *repository.User) error {
	if user == nil || user.ID == "" {
		return errors.New("MemoryUserRepository: user id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrUserNotFound)
	}
	return &u, nil
}

func (r *MemoryUserRepository) AreFriends(_ context.Context, a, b string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.friends[friendPair{a, b}]
	return ok, nil
}

func (r *MemoryUserRepository) AddFriendship(_ context.Context, a, b string) error {
	if a == b {
		return errors.New("MemoryUserRepository: a user cannot befriend itself")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.friends[friendPair{a, b}] = struct{}{}
	r.friends[friendPair{b, a}] = struct{}{}
	return nil
}
