package repository

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned by lookups for unknown ids.
var ErrUserNotFound = errors.New("user: not found")

// User is the slice of the user directory the chat core reads.
type User struct {
	ID                    string
	DisplayName           string
	AllowStrangerMessages bool
	CreatedAt             time.Time
}

// UserRepository is the contract for the user directory.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	// AreFriends reports whether a confirmed friendship links a and b.
	AreFriends(ctx context.Context, a, b string) (bool, error)
	// AddFriendship records a confirmed friendship in both directions.
	AddFriendship(ctx context.Context, a, b string) error
}
