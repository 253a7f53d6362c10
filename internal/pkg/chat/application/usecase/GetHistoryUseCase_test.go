package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/persistence/recency"
	"zenchatty/internal/pkg/chat/persistence/repository/adapter"
)

func traceIDs(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.TraceID)
	}
	return out
}

func TestGetHistoryPagesWithoutGaps(t *testing.T) {
	e := newEnv(t)
	small := recency.New(3, 0)
	e.deliver.Cache = small
	history := NewGetHistoryUseCase(e.store, e.store, small)

	g := e.group(t, "owner", "alice")
	for i := 0; i < 10; i++ {
		e.mustSay(t, g.ID, "alice", fmt.Sprintf("m%d", i))
	}
	require.Equal(t, 3, small.Len(g.ID))

	var (
		got    []string
		before time.Time
	)
	for pages := 0; pages < 10; pages++ {
		page, err := history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID, RequesterID: "owner", Limit: 4, Before: before})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		assert.LessOrEqual(t, len(page), 4)
		for i := 1; i < len(page); i++ {
			assert.True(t, page[i-1].SentAt.Before(page[i].SentAt), "page must be oldest first")
		}
		got = append(traceIDs(page), got...)
		before = page[0].SentAt
	}

	want := traceIDs(e.queue.sent)
	assert.Equal(t, want, got)
	assert.Len(t, got, 11)
}

func TestGetHistoryLimitDefaultsAndCaps(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	for i := 0; i < 5; i++ {
		e.mustSay(t, g.ID, "alice", fmt.Sprintf("m%d", i))
	}

	page, err := e.history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID, RequesterID: "alice"})
	require.NoError(t, err)
	assert.Len(t, page, 6)
	assert.Equal(t, "m4", page[len(page)-1].Content)

	page, err = e.history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID, RequesterID: "alice", Limit: MaxHistoryLimit + 50})
	require.NoError(t, err)
	assert.Len(t, page, 6)

	page, err = e.history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID, RequesterID: "alice", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m3", page[0].Content)
	assert.Equal(t, "m4", page[1].Content)
}

func TestGetHistoryReadsStoreWhenCacheIsCold(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	m := e.mustSay(t, g.ID, "alice", "persisted")
	e.cache.Evict(g.ID)

	page, err := e.history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID, RequesterID: "owner"})
	require.NoError(t, err)
	require.NotEmpty(t, page)
	assert.Equal(t, m.TraceID, page[len(page)-1].TraceID)
}

func TestGetHistoryHidesChatsFromOutsiders(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	e.user(t, "mallory", true)

	_, err := e.history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID, RequesterID: "mallory"})
	assert.ErrorIs(t, err, chat.ErrNotFound)

	_, err = e.history.Execute(e.ctx, GetHistoryInput{ChatID: "nope", RequesterID: "alice"})
	assert.ErrorIs(t, err, chat.ErrNotFound)

	_, err = e.history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// microsecondStore keeps timestamps the way postgres timestamptz does.
type microsecondStore struct {
	*adapter.MemoryStore
}

func (s microsecondStore) SaveMessage(ctx context.Context, m chat.Message) (bool, error) {
	m.SentAt = m.SentAt.Round(time.Microsecond)
	m.ServerCaughtAt = m.ServerCaughtAt.Round(time.Microsecond)
	return s.MemoryStore.SaveMessage(ctx, m)
}

func TestGetHistoryWithMicrosecondStore(t *testing.T) {
	e := newEnv(t)
	e.clock.now = t0.Add(400 * time.Nanosecond)
	store := microsecondStore{e.store}
	small := recency.New(3, 0)
	e.deliver.Messages = store
	e.deliver.Cache = small
	history := NewGetHistoryUseCase(e.store, store, small)

	g := e.group(t, "owner", "alice")
	for i := 0; i < 6; i++ {
		e.mustSay(t, g.ID, "alice", fmt.Sprintf("m%d", i))
	}

	var (
		got    []string
		before time.Time
	)
	for pages := 0; pages < 10; pages++ {
		page, err := history.Execute(e.ctx, GetHistoryInput{ChatID: g.ID, RequesterID: "owner", Limit: 3, Before: before})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		got = append(traceIDs(page), got...)
		before = page[0].SentAt
	}
	assert.Equal(t, traceIDs(e.queue.sent), got)

	cached := small.GetRecent(g.ID)
	require.NotEmpty(t, cached)
	stored, err := e.store.FindMessage(e.ctx, cached[0].TraceID)
	require.NoError(t, err)
	assert.True(t, stored.SentAt.Equal(cached[0].SentAt))
}

func TestCursorCeil(t *testing.T) {
	assert.True(t, cursorCeil(time.Time{}).IsZero())
	whole := t0.Add(5 * time.Microsecond)
	assert.Equal(t, whole, cursorCeil(whole))
	assert.Equal(t, whole, cursorCeil(t0.Add(4*time.Microsecond+1)))
}
