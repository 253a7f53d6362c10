package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"zenchatty/internal/infrastructure/cache/port"
)

// DefaultRedisPrefix namespaces every key this service writes, so the redis
// instance can be shared with asynq.
const DefaultRedisPrefix = "zenchatty:"

// RedisCache implements port.Cache on go-redis v9.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisOption customizes NewRedisAdapter.
type RedisOption func(*RedisCache)

// WithKeyPrefix replaces DefaultRedisPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisCache) { r.prefix = prefix }
}

// NewRedisAdapter connects to the redis:// URL in REDIS_URL and pings it.
func NewRedisAdapter(url string, opts ...RedisOption) (*RedisCache, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("redis: REDIS_URL is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	r := &RedisCache{client: redis.NewClient(opt), prefix: DefaultRedisPrefix}
	for _, o := range opts {
		o(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = r.client.Close()
		return nil, err
	}
	return r, nil
}

var _ port.Cache = (*RedisCache)(nil)

func (r *RedisCache) key(k string) string { return r.prefix + k }

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", port.ErrMiss
	case err != nil:
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok, err := r.client.SetNX(ctx, r.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	n, err := r.client.Del(ctx, full...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: del: %w", err)
	}
	return n, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
