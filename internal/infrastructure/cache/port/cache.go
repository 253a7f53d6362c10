package port

import (
	"context"
	"time"
)

// Cache is the key/value store behind short-lived coordination state, such as
// the per-message delivery ledger. Values are opaque strings. Implementations
// are safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss for absent or expired keys.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. ttl <= 0 keeps it until deleted.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// SetNX stores value only if key is absent and reports whether it did.
	// Exactly one of several concurrent callers on the same key wins.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals that a key does not exist.
var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }
