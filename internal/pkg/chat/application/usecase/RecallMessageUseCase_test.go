package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecallBySender(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	m := e.mustSay(t, g.ID, "alice", "typo")
	e.pusher.topics = nil

	res, err := e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, RecallOK, res)

	stored, err := e.store.FindMessage(e.ctx, m.TraceID)
	require.NoError(t, err)
	assert.True(t, stored.IsCanceled)
	// the row keeps its content
	assert.Equal(t, "typo", stored.Content)

	require.Equal(t, 1, e.pusher.topicCount())
	assert.Contains(t, e.pusher.topics[0].payload, `"event":"message_recalled"`)
	assert.Contains(t, e.pusher.topics[0].payload, m.TraceID)

	res, err = e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, RecallAlreadyCanceled, res)
	assert.Equal(t, 1, e.pusher.topicCount())
}

func TestRecallWindowAndManagers(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice", "bob")
	m := e.mustSay(t, g.ID, "alice", "old news")

	res, err := e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, RecallForbidden, res)

	e.clock.Advance(DefaultRecallWindow + time.Second)
	res, err = e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, RecallForbidden, res)

	res, err = e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "owner"})
	require.NoError(t, err)
	assert.Equal(t, RecallOK, res)
}

func TestRecallUnknownOrHidden(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	e.user(t, "mallory", true)
	m := e.mustSay(t, g.ID, "alice", "members only")

	res, err := e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "mallory"})
	require.NoError(t, err)
	assert.Equal(t, RecallNotFound, res)

	res, err = e.recall.Execute(e.ctx, RecallInput{TraceID: "missing", RequesterID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, RecallNotFound, res)

	_, err = e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecallUpdatesCacheAndAnnouncements(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	d, m := NewPublishAnnouncementUseCase(e.send).Execute(e.ctx, PublishAnnouncementInput{GroupID: g.ID, OperatorID: "owner", Content: "meeting at 5"})
	require.True(t, d.OK())
	require.Len(t, e.load(t, g.ID).Group.Announcements, 1)

	res, err := e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "owner"})
	require.NoError(t, err)
	require.Equal(t, RecallOK, res)

	cached, ok := e.cache.Get(g.ID, m.TraceID)
	require.True(t, ok)
	assert.True(t, cached.IsCanceled)
	assert.Empty(t, e.load(t, g.ID).Group.Announcements)
}

func TestRecallDoesNotRepopulateColdCache(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	m := e.mustSay(t, g.ID, "alice", "gone soon")
	e.cache.Evict(g.ID)

	res, err := e.recall.Execute(e.ctx, RecallInput{TraceID: m.TraceID, RequesterID: "alice"})
	require.NoError(t, err)
	require.Equal(t, RecallOK, res)

	_, ok := e.cache.Get(g.ID, m.TraceID)
	assert.False(t, ok)
}

func TestReconcileReplacesDriftedBucket(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	m1 := e.mustSay(t, g.ID, "alice", "one")
	e.mustSay(t, g.ID, "alice", "two")
	reconcile := NewReconcileCacheUseCase(e.store, e.cache, 0, nil)

	replaced, err := reconcile.Execute(e.ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, replaced)

	e.store.DeleteMessage(m1.TraceID)
	replaced, err = reconcile.Execute(e.ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.NotContains(t, e.cache.TraceIDs(g.ID), m1.TraceID)
	assert.Len(t, e.cache.TraceIDs(g.ID), e.store.MessageCount(g.ID))

	replaced, err = reconcile.Execute(e.ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, replaced)
}

func TestReconcilePassCoversActiveChats(t *testing.T) {
	e := newEnv(t)
	g1 := e.group(t, "owner", "alice")
	g2 := e.group(t, "owner", "bob")
	m := e.mustSay(t, g1.ID, "alice", "drift")
	e.mustSay(t, g2.ID, "bob", "steady")
	e.store.DeleteMessage(m.TraceID)

	reconcile := NewReconcileCacheUseCase(e.store, e.cache, 0, nil)
	assert.Equal(t, 1, reconcile.Pass(e.ctx, time.Time{}))
	assert.Equal(t, 0, reconcile.Pass(e.ctx, time.Time{}))
}
