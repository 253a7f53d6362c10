// Package recency keeps the latest messages of each chat in memory so the
// common history read never reaches the durable store.
package recency

import (
	"sort"
	"sync"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = 30 * time.Minute
)

// Cache is a set of per-chat buckets. Each bucket has its own lock, so work on
// different chats never contends.
type Cache struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	buckets sync.Map // chat id -> *bucket
}

type bucket struct {
	mu        sync.RWMutex
	msgs      []chat.Message // ascending by SentAt, then TraceID
	ids       map[string]struct{}
	expiresAt time.Time
	lastWrite time.Time
	// dead is set under mu when the bucket is unlinked from the map; writers
	// that raced with the unlink retry on a fresh bucket.
	dead bool
}

// New returns a cache holding at most capacity messages per chat, dropping a
// chat's bucket ttl after its last write. Non-positive values use the defaults.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{capacity: capacity, ttl: ttl, now: time.Now}
}

// Capacity is the per-chat bound.
func (c *Cache) Capacity() int { return c.capacity }

func less(a, b chat.Message) bool {
	if a.SentAt.Equal(b.SentAt) {
		return a.TraceID < b.TraceID
	}
	return a.SentAt.Before(b.SentAt)
}

// write runs fn on the live bucket for chatID, creating it if needed.
func (c *Cache) write(chatID string, fn func(b *bucket, now time.Time)) {
	for {
		v, _ := c.buckets.LoadOrStore(chatID, &bucket{ids: map[string]struct{}{}})
		b := v.(*bucket)
		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		now := c.now()
		if !b.expiresAt.IsZero() && !now.Before(b.expiresAt) {
			b.msgs = nil
			b.ids = map[string]struct{}{}
		}
		fn(b, now)
		b.expiresAt = now.Add(c.ttl)
		b.lastWrite = now
		b.mu.Unlock()
		return
	}
}

// read runs fn on the bucket for chatID under a read lock. Missing and expired
// buckets are skipped.
func (c *Cache) read(chatID string, fn func(b *bucket)) {
	v, ok := c.buckets.Load(chatID)
	if !ok {
		return
	}
	b := v.(*bucket)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.dead || !c.now().Before(b.expiresAt) {
		return
	}
	fn(b)
}

func (b *bucket) remove(traceID string) bool {
	if _, ok := b.ids[traceID]; !ok {
		return false
	}
	for i := range b.msgs {
		if b.msgs[i].TraceID == traceID {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
			break
		}
	}
	delete(b.ids, traceID)
	return true
}

func (b *bucket) insert(m chat.Message, capacity int) {
	b.remove(m.TraceID)
	i := sort.Search(len(b.msgs), func(i int) bool { return less(m, b.msgs[i]) })
	b.msgs = append(b.msgs, chat.Message{})
	copy(b.msgs[i+1:], b.msgs[i:])
	b.msgs[i] = m
	b.ids[m.TraceID] = struct{}{}
	if over := len(b.msgs) - capacity; over > 0 {
		for _, old := range b.msgs[:over] {
			delete(b.ids, old.TraceID)
		}
		b.msgs = append([]chat.Message(nil), b.msgs[over:]...)
	}
}

// Insert adds m to its chat, replacing any cached copy with the same trace id.
func (c *Cache) Insert(m chat.Message) {
	if m.ChatID == "" || m.TraceID == "" {
		return
	}
	c.write(m.ChatID, func(b *bucket, _ time.Time) {
		b.insert(m, c.capacity)
	})
}

// Replace swaps the whole bucket for msgs.
func (c *Cache) Replace(chatID string, msgs []chat.Message) {
	c.write(chatID, func(b *bucket, _ time.Time) {
		b.msgs = nil
		b.ids = make(map[string]struct{}, len(msgs))
		for _, m := range msgs {
			if m.TraceID == "" {
				continue
			}
			b.insert(m, c.capacity)
		}
	})
}

// RemoveOne drops a single message and reports whether it was cached.
func (c *Cache) RemoveOne(chatID, traceID string) bool {
	v, ok := c.buckets.Load(chatID)
	if !ok {
		return false
	}
	b := v.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dead {
		return false
	}
	return b.remove(traceID)
}

// Evict drops the whole bucket for chatID.
func (c *Cache) Evict(chatID string) {
	v, ok := c.buckets.Load(chatID)
	if !ok {
		return
	}
	c.unlink(chatID, v.(*bucket))
}

func (c *Cache) unlink(chatID string, b *bucket) {
	b.mu.Lock()
	b.dead = true
	c.buckets.CompareAndDelete(chatID, b)
	b.mu.Unlock()
}

// GetRecent returns the cached messages of chatID, oldest first.
func (c *Cache) GetRecent(chatID string) []chat.Message {
	var out []chat.Message
	c.read(chatID, func(b *bucket) {
		out = append([]chat.Message(nil), b.msgs...)
	})
	return out
}

// Get returns the cached copy of one message.
func (c *Cache) Get(chatID, traceID string) (chat.Message, bool) {
	var (
		out   chat.Message
		found bool
	)
	c.read(chatID, func(b *bucket) {
		if _, ok := b.ids[traceID]; !ok {
			return
		}
		for _, m := range b.msgs {
			if m.TraceID == traceID {
				out, found = m, true
				return
			}
		}
	})
	return out, found
}

// Before returns up to limit cached messages sent strictly before before,
// newest first. A zero before means no upper bound.
func (c *Cache) Before(chatID string, before time.Time, limit int) []chat.Message {
	if limit <= 0 {
		return nil
	}
	var out []chat.Message
	c.read(chatID, func(b *bucket) {
		end := len(b.msgs)
		if !before.IsZero() {
			end = sort.Search(len(b.msgs), func(i int) bool { return !b.msgs[i].SentAt.Before(before) })
		}
		for i := end - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, b.msgs[i])
		}
	})
	return out
}

// TraceIDs lists the cached trace ids of chatID, oldest first.
func (c *Cache) TraceIDs(chatID string) []string {
	var out []string
	c.read(chatID, func(b *bucket) {
		out = make([]string, 0, len(b.msgs))
		for _, m := range b.msgs {
			out = append(out, m.TraceID)
		}
	})
	return out
}

// Len is the number of live cached messages for chatID.
func (c *Cache) Len(chatID string) int {
	n := 0
	c.read(chatID, func(b *bucket) { n = len(b.msgs) })
	return n
}

// ActiveSince lists chats written at or after t.
func (c *Cache) ActiveSince(t time.Time) []string {
	var ids []string
	c.buckets.Range(func(k, v any) bool {
		b := v.(*bucket)
		b.mu.RLock()
		active := !b.dead && !b.lastWrite.Before(t)
		b.mu.RUnlock()
		if active {
			ids = append(ids, k.(string))
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

// Sweep unlinks expired buckets and returns how many were dropped.
func (c *Cache) Sweep() int {
	now := c.now()
	n := 0
	c.buckets.Range(func(k, v any) bool {
		b := v.(*bucket)
		b.mu.RLock()
		expired := !now.Before(b.expiresAt)
		b.mu.RUnlock()
		if expired {
			b.mu.Lock()
			// re-check: a writer may have refreshed it in between
			if !b.dead && !now.Before(b.expiresAt) {
				b.dead = true
				c.buckets.CompareAndDelete(k, b)
				n++
			}
			b.mu.Unlock()
		}
		return true
	})
	return n
}
