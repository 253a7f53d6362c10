package usecase

import (
	"errors"
	"fmt"
)

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = fmt.Errorf("chat use case persistence error")

var (
	// ErrInvalidInput marks requests rejected before touching any state.
	ErrInvalidInput = errors.New("chat use case: invalid input")
	// ErrUnresolvable marks deliveries whose chat or sender no longer exists.
	// Redelivering them cannot succeed.
	ErrUnresolvable = errors.New("chat use case: referenced entity does not exist")
	// ErrNotFriends is returned when an operation needs a confirmed friendship.
	ErrNotFriends = errors.New("chat use case: users are not friends")
)

func persistence(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
