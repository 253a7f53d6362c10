package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cacheAdapter "zenchatty/internal/infrastructure/cache/adapter"
	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/persistence/recency"
	"zenchatty/internal/pkg/chat/persistence/repository/adapter"
	userAdapter "zenchatty/internal/repository/adapter"
	userport "zenchatty/internal/repository/port"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// tickingClock advances one millisecond per reading so consecutive messages
// never share a SentAt.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *tickingClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type pushed struct {
	target  string
	payload string
}

type recordingPusher struct {
	mu      sync.Mutex
	topics  []pushed
	signals []pushed
}

func (p *recordingPusher) Push(topic string, payload []byte) int {
	p.mu.Lock()
	p.topics = append(p.topics, pushed{topic, string(payload)})
	p.mu.Unlock()
	return 1
}

func (p *recordingPusher) NotifyUser(userID string, payload []byte) bool {
	p.mu.Lock()
	p.signals = append(p.signals, pushed{userID, string(payload)})
	p.mu.Unlock()
	return true
}

func (p *recordingPusher) topicCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}

// inlineQueue delivers on Enqueue, like the synchronous direct queue.
type inlineQueue struct {
	mu      sync.Mutex
	deliver *DeliverMessageUseCase
	sent    []chat.Message
	fail    error
}

func (q *inlineQueue) Enqueue(ctx context.Context, m chat.Message) error {
	if q.fail != nil {
		return q.fail
	}
	q.mu.Lock()
	q.sent = append(q.sent, m)
	q.mu.Unlock()
	if q.deliver == nil {
		return nil
	}
	return q.deliver.Execute(ctx, m)
}

func (q *inlineQueue) last() chat.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sent[len(q.sent)-1]
}

type env struct {
	ctx    context.Context
	clock  *tickingClock
	store  *adapter.MemoryStore
	users  *userAdapter.MemoryUserRepository
	cache  *recency.Cache
	pusher *recordingPusher
	queue  *inlineQueue

	deliver   *DeliverMessageUseCase
	send      *TrySendMessageUseCase
	messenger *SystemMessenger
	create    *CreateChatUseCase
	moderate  *ModerateGroupUseCase
	history   *GetHistoryUseCase
	recall    *RecallMessageUseCase
	contacts  *UpdateContactUseCase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		ctx:    context.Background(),
		clock:  &tickingClock{now: t0},
		store:  adapter.NewMemoryStore(),
		users:  userAdapter.NewMemoryUserRepository(),
		cache:  recency.New(0, 0),
		pusher: &recordingPusher{},
	}
	e.store.SetClock(e.clock.Now)

	e.deliver = NewDeliverMessageUseCase(e.store, e.store, e.store, e.users, e.cache,
		NewDeliveryLedger(cacheAdapter.NewMemoryCache(), 0), e.pusher, nil)
	e.deliver.Now = e.clock.Now
	e.queue = &inlineQueue{deliver: e.deliver}

	policy := NewSendPolicy(e.store, e.store, e.users, 0, nil)
	policy.Now = e.clock.Now
	e.send = NewTrySendMessageUseCase(policy, e.queue, nil)
	e.send.Now = e.clock.Now

	e.messenger = NewSystemMessenger(e.queue, nil)
	e.messenger.Now = e.clock.Now
	e.create = NewCreateChatUseCase(e.store, e.store, e.users, e.messenger)
	e.create.Now = e.clock.Now
	e.moderate = NewModerateGroupUseCase(e.store, e.store, e.store, e.messenger, nil)
	e.moderate.Now = e.clock.Now
	e.history = NewGetHistoryUseCase(e.store, e.store, e.cache)
	e.recall = NewRecallMessageUseCase(e.store, e.store, e.cache, e.pusher, 0, nil)
	e.recall.Now = e.clock.Now
	e.contacts = NewUpdateContactUseCase(e.store)
	return e
}

func (e *env) user(t *testing.T, id string, allowStrangers bool) {
	t.Helper()
	require.NoError(t, e.users.Create(e.ctx, &userport.User{ID: id, DisplayName: id, AllowStrangerMessages: allowStrangers}))
}

func (e *env) befriend(t *testing.T, a, b string) {
	t.Helper()
	require.NoError(t, e.users.AddFriendship(e.ctx, a, b))
}

// group creates a group owned by owner with the given members, all of whom
// become the owner's friends first.
func (e *env) group(t *testing.T, owner string, members ...string) *chat.Chat {
	t.Helper()
	e.user(t, owner, false)
	for _, m := range members {
		e.user(t, m, false)
		e.befriend(t, owner, m)
	}
	c, err := e.create.Execute(e.ctx, CreateChatInput{
		CreatorID: owner,
		Kind:      chat.ChatKindGroup,
		MemberIDs: members,
		Settings:  chat.GroupSettings{DisplayName: "crew", IsPrivateChatAllowed: true},
	})
	require.NoError(t, err)
	return c
}

func (e *env) say(t *testing.T, chatID, sender, content string) (chat.Decision, *chat.Message) {
	t.Helper()
	return e.send.Execute(e.ctx, TrySendInput{ChatID: chatID, SenderID: sender, Content: content})
}

func (e *env) mustSay(t *testing.T, chatID, sender, content string) chat.Message {
	t.Helper()
	d, m := e.say(t, chatID, sender, content)
	require.Equal(t, chat.DecisionSuccess, d.Code, d.String())
	require.NotNil(t, m)
	return *m
}

func (e *env) mod(t *testing.T, chatID string, cmd chat.ModerationCommand) chat.Outcome {
	t.Helper()
	res, err := e.moderate.Execute(e.ctx, ModerateGroupInput{ChatID: chatID, Command: cmd})
	require.NoError(t, err)
	return res
}

func (e *env) contact(t *testing.T, user, chatID string) chat.Contact {
	t.Helper()
	c, err := e.store.FindContact(e.ctx, user, chatID)
	require.NoError(t, err)
	return *c
}

func (e *env) load(t *testing.T, chatID string) *chat.Chat {
	t.Helper()
	c, err := e.store.FindChat(e.ctx, chatID)
	require.NoError(t, err)
	return c
}

var errQueueDown = errors.New("queue down")
