package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

func TestTrySendPreChecks(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")

	d, _ := e.say(t, g.ID, "alice", "   ")
	assert.Equal(t, chat.DecisionContentEmpty, d.Code)

	d, _ = e.say(t, g.ID, "alice", strings.Repeat("x", DefaultMaxContentLength+1))
	assert.Equal(t, chat.DecisionForbidden, d.Code)

	d, _ = e.send.Execute(e.ctx, TrySendInput{ChatID: g.ID, SenderID: "alice", Content: "hi", Type: chat.MessageTypeEvent})
	assert.Equal(t, chat.DecisionForbidden, d.Code)

	d, _ = e.say(t, "missing", "alice", "hi")
	assert.Equal(t, chat.DecisionChatNotFound, d.Code)

	d, _ = e.say(t, g.ID, "ghost", "hi")
	assert.Equal(t, chat.DecisionSenderNotFound, d.Code)

	d, _ = e.say(t, g.ID, "alice", "hi")
	assert.Equal(t, chat.DecisionSuccess, d.Code)
}

func TestTrySendInformalChatOnlyAcceptsRequests(t *testing.T) {
	e := newEnv(t)
	e.user(t, "alice", false)
	e.user(t, "bob", true)

	pc, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindPrivate, PeerID: "bob"})
	require.NoError(t, err)
	require.True(t, pc.Private.IsInformal)

	d, _ := e.say(t, pc.ID, "alice", "hello")
	assert.Equal(t, chat.DecisionUnauthorized, d.Code)

	d, m := e.send.Execute(e.ctx, TrySendInput{ChatID: pc.ID, SenderID: "alice", Content: "add me?", Type: chat.MessageTypeRequesting})
	require.Equal(t, chat.DecisionSuccess, d.Code)
	assert.Equal(t, chat.MessageTypeRequesting, m.Type)
}

func TestTrySendInformalChatRespectsReceiverPrivacy(t *testing.T) {
	e := newEnv(t)
	e.user(t, "alice", false)
	e.user(t, "bob", false)

	pc, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindPrivate, PeerID: "bob"})
	require.NoError(t, err)

	d, _ := e.send.Execute(e.ctx, TrySendInput{ChatID: pc.ID, SenderID: "alice", Content: "add me?", Type: chat.MessageTypeRequesting})
	assert.Equal(t, chat.DecisionForbidden, d.Code)
}

func TestTrySendBlockIsOneSided(t *testing.T) {
	e := newEnv(t)
	e.user(t, "alice", false)
	e.user(t, "bob", false)
	e.befriend(t, "alice", "bob")
	pc, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindPrivate, PeerID: "bob"})
	require.NoError(t, err)
	require.False(t, pc.Private.IsInformal)

	e.mustSay(t, pc.ID, "alice", "hi bob")
	require.NoError(t, e.contacts.Execute(e.ctx, UpdateContactInput{UserID: "bob", ChatID: pc.ID, Action: ContactBlock}))

	d, _ := e.say(t, pc.ID, "alice", "hello?")
	assert.Equal(t, chat.DecisionPrivateChatBlocked, d.Code)
	e.mustSay(t, pc.ID, "bob", "I can still talk")

	require.NoError(t, e.contacts.Execute(e.ctx, UpdateContactInput{UserID: "bob", ChatID: pc.ID, Action: ContactUnblock}))
	e.mustSay(t, pc.ID, "alice", "thanks")
}

func TestTrySendViaGroupPrivateChat(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice", "bob")
	// alice and bob are not friends, so their private chat is informal
	pc, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindPrivate, PeerID: "bob"})
	require.NoError(t, err)
	require.True(t, pc.Private.IsInformal)

	d, _ := e.send.Execute(e.ctx, TrySendInput{ChatID: pc.ID, SenderID: "alice", Content: "hi", ViaGroupID: g.ID})
	assert.Equal(t, chat.DecisionSuccess, d.Code)

	d, _ = e.send.Execute(e.ctx, TrySendInput{ChatID: pc.ID, SenderID: "alice", Content: "hi", ViaGroupID: "nope"})
	assert.Equal(t, chat.DecisionViaGroupChatValidationFailed, d.Code)

	require.True(t, e.mod(t, g.ID, chat.LeaveGroup{OperatorID: "owner", TargetID: "bob"}).OK)
	d, _ = e.send.Execute(e.ctx, TrySendInput{ChatID: pc.ID, SenderID: "alice", Content: "hi", ViaGroupID: g.ID})
	assert.Equal(t, chat.DecisionNotInGroup, d.Code)
}

func TestTrySendClearsExpiredSilence(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	minute := time.Minute
	require.True(t, e.mod(t, g.ID, chat.SetMemberSilent{OperatorID: "owner", TargetID: "alice", IsSilent: true, Duration: &minute}).OK)

	d, _ := e.say(t, g.ID, "alice", "let me talk")
	require.Equal(t, chat.DecisionUserMuted, d.Code)
	assert.Contains(t, d.Reason, "muted until")

	e.clock.Advance(2 * time.Minute)
	e.mustSay(t, g.ID, "alice", "finally")

	m := e.load(t, g.ID).Group.Member("alice")
	require.NotNil(t, m)
	assert.False(t, m.IsSilent)
	assert.Nil(t, m.SilentUntil)
}

func TestTrySendAllSilentSparesManagers(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "admin", "alice")
	require.True(t, e.mod(t, g.ID, chat.SetAdmin{OperatorID: "owner", TargetID: "admin", IsAdmin: true}).OK)
	require.True(t, e.mod(t, g.ID, chat.ToggleAllSilent{OperatorID: "admin", IsSilent: true}).OK)

	d, _ := e.say(t, g.ID, "alice", "hello")
	assert.Equal(t, chat.DecisionUserMuted, d.Code)
	e.mustSay(t, g.ID, "admin", "quiet please")
	e.mustSay(t, g.ID, "owner", "thanks")

	require.True(t, e.mod(t, g.ID, chat.ToggleAllSilent{OperatorID: "owner", IsSilent: false}).OK)
	e.mustSay(t, g.ID, "alice", "hello again")
}

func TestTrySendEnqueueFailureIsInternal(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	e.queue.fail = errQueueDown

	d, m := e.say(t, g.ID, "alice", "hi")
	assert.Equal(t, chat.DecisionInternalError, d.Code)
	assert.Nil(t, m)
	assert.NotContains(t, d.Reason, errQueueDown.Error())
}

func TestTrySendStampsServerTimeAndTraceID(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	e.send.NewID = func() string { return "trace-fixed" }

	m := e.mustSay(t, g.ID, "alice", "  padded  ")
	assert.Equal(t, "trace-fixed", m.TraceID)
	assert.Equal(t, "padded", m.Content)
	assert.True(t, m.SentAt.After(t0))
	assert.Equal(t, time.UTC, m.SentAt.Location())
}

func TestPublishAnnouncementRequiresManager(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	announce := NewPublishAnnouncementUseCase(e.send)

	d, _ := announce.Execute(e.ctx, PublishAnnouncementInput{GroupID: g.ID, OperatorID: "alice", Content: "news"})
	assert.Equal(t, chat.DecisionForbidden, d.Code)

	d, m := announce.Execute(e.ctx, PublishAnnouncementInput{GroupID: g.ID, OperatorID: "owner", Content: "news"})
	require.Equal(t, chat.DecisionSuccess, d.Code)
	assert.True(t, m.IsAnnouncement)
	assert.Equal(t, []string{m.TraceID}, e.load(t, g.ID).Group.Announcements)
	assert.True(t, e.contact(t, "alice", g.ID).HasVitalUnread)
}
