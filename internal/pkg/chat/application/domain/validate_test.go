package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func privateChat(informal bool) *Chat {
	c := NewPrivateChat("p1", "alice", "bob", informal, t0)
	return &c
}

func groupChat(members ...string) *Chat {
	c := NewGroupChat("g1", "owner", GroupSettings{DisplayName: "g"}, members, t0)
	return &c
}

func TestValidate_NilChat(t *testing.T) {
	v := Validate(nil, SendCheck{SenderID: "alice"})
	assert.Equal(t, DecisionChatNotFound, v.Decision.Code)
}

func TestValidate_MalformedChatIsInternal(t *testing.T) {
	c := &Chat{ID: "x", Kind: ChatKindGroup}
	v := Validate(c, SendCheck{SenderID: "alice", Now: t0})
	assert.Equal(t, DecisionInternalError, v.Decision.Code)
}

func TestValidatePrivate_InformalStrangers(t *testing.T) {
	c := privateChat(true)
	base := SendCheck{SenderID: "alice", Now: t0, SenderHasContact: true, ReceiverAllowsStrangers: true}

	normal := base
	normal.Type = MessageTypeNormal
	assert.Equal(t, DecisionUnauthorized, Validate(c, normal).Decision.Code)

	req := base
	req.Type = MessageTypeRequesting
	assert.True(t, Validate(c, req).Decision.OK())
}

func TestValidatePrivate_InformalFriendsMaySendAnything(t *testing.T) {
	c := privateChat(true)
	v := Validate(c, SendCheck{SenderID: "alice", Now: t0, SenderHasContact: true, AreFriends: true, Type: MessageTypeNormal})
	assert.True(t, v.Decision.OK())
}

func TestValidatePrivate_ReceiverRejectsStrangers(t *testing.T) {
	c := privateChat(true)
	v := Validate(c, SendCheck{SenderID: "alice", Now: t0, SenderHasContact: true, Type: MessageTypeRequesting})
	assert.Equal(t, DecisionForbidden, v.Decision.Code)
}

func TestValidatePrivate_NotAParty(t *testing.T) {
	c := privateChat(false)
	v := Validate(c, SendCheck{SenderID: "mallory", Now: t0, SenderHasContact: true})
	assert.Equal(t, DecisionUnauthorized, v.Decision.Code)

	v = Validate(c, SendCheck{SenderID: "alice", Now: t0})
	assert.Equal(t, DecisionUnauthorized, v.Decision.Code)
}

func TestValidatePrivate_Blocked(t *testing.T) {
	c := privateChat(false)
	v := Validate(c, SendCheck{SenderID: "bob", Now: t0, SenderHasContact: true, ReceiverBlockedSender: true, AreFriends: true})
	assert.Equal(t, DecisionPrivateChatBlocked, v.Decision.Code)
}

func TestValidatePrivate_BlockWinsOverViaGroup(t *testing.T) {
	c := privateChat(true)
	g := groupChat("alice", "bob")
	g.Group.Settings.IsPrivateChatAllowed = true
	v := Validate(c, SendCheck{SenderID: "alice", Now: t0, SenderHasContact: true, ReceiverBlockedSender: true, ViaGroupID: g.ID, ViaGroup: g})
	assert.Equal(t, DecisionPrivateChatBlocked, v.Decision.Code)
}

func TestValidatePrivate_UnreachableAndAnnouncement(t *testing.T) {
	c := privateChat(false)
	c.Status = ChatStatusUnreachable
	v := Validate(c, SendCheck{SenderID: "alice", Now: t0, SenderHasContact: true, AreFriends: true})
	assert.Equal(t, DecisionForbidden, v.Decision.Code)

	c = privateChat(false)
	v = Validate(c, SendCheck{SenderID: "alice", Now: t0, SenderHasContact: true, AreFriends: true, Type: MessageTypeAnnouncement})
	assert.Equal(t, DecisionForbidden, v.Decision.Code)
}

func TestValidatePrivate_ViaGroup(t *testing.T) {
	in := func(g *Chat) SendCheck {
		id := "g1"
		if g != nil {
			id = g.ID
		}
		return SendCheck{SenderID: "alice", Type: MessageTypeNormal, Now: t0, SenderHasContact: true, ViaGroupID: id, ViaGroup: g}
	}

	t.Run("missing group", func(t *testing.T) {
		assert.Equal(t, DecisionViaGroupChatValidationFailed, Validate(privateChat(true), in(nil)).Decision.Code)
	})
	t.Run("private chat given as group", func(t *testing.T) {
		other := privateChat(false)
		assert.Equal(t, DecisionViaGroupChatValidationFailed, Validate(privateChat(true), in(other)).Decision.Code)
	})
	t.Run("disabled", func(t *testing.T) {
		g := groupChat("alice", "bob")
		g.Group.Settings.IsPrivateChatAllowed = true
		g.Status = ChatStatusGroupDisabled
		assert.Equal(t, DecisionGroupChatDisabled, Validate(privateChat(true), in(g)).Decision.Code)
	})
	t.Run("not allowed", func(t *testing.T) {
		g := groupChat("alice", "bob")
		assert.Equal(t, DecisionPrivateChatNotAllowed, Validate(privateChat(true), in(g)).Decision.Code)
	})
	t.Run("receiver not a member", func(t *testing.T) {
		g := groupChat("alice")
		g.Group.Settings.IsPrivateChatAllowed = true
		assert.Equal(t, DecisionNotInGroup, Validate(privateChat(true), in(g)).Decision.Code)
	})
	t.Run("bypasses stranger rule", func(t *testing.T) {
		g := groupChat("alice", "bob")
		g.Group.Settings.IsPrivateChatAllowed = true
		assert.True(t, Validate(privateChat(true), in(g)).Decision.OK())
	})
}

func TestValidateGroup_Membership(t *testing.T) {
	g := groupChat("alice")
	assert.True(t, Validate(g, SendCheck{SenderID: "alice", Now: t0}).Decision.OK())
	assert.Equal(t, DecisionNotInGroup, Validate(g, SendCheck{SenderID: "mallory", Now: t0}).Decision.Code)

	g.Status = ChatStatusGroupDisabled
	assert.Equal(t, DecisionGroupChatDisabled, Validate(g, SendCheck{SenderID: "alice", Now: t0}).Decision.Code)
}

func TestValidateGroup_ExpiredSilenceIsCleared(t *testing.T) {
	g := groupChat("alice")
	past := t0.Add(-time.Minute)
	m := g.Group.Member("alice")
	m.IsSilent = true
	m.SilentUntil = &past

	v := Validate(g, SendCheck{SenderID: "alice", Now: t0})
	require.True(t, v.Decision.OK())
	assert.Equal(t, "alice", v.ClearedSilenceOf)
	assert.False(t, g.Group.Member("alice").IsSilent)
	assert.Nil(t, g.Group.Member("alice").SilentUntil)
}

func TestValidateGroup_ActiveSilence(t *testing.T) {
	g := groupChat("alice")
	future := t0.Add(time.Hour)
	m := g.Group.Member("alice")
	m.IsSilent = true
	m.SilentUntil = &future

	v := Validate(g, SendCheck{SenderID: "alice", Now: t0})
	assert.Equal(t, DecisionUserMuted, v.Decision.Code)
	assert.Contains(t, v.Decision.Reason, future.Format(time.RFC3339))
	assert.Empty(t, v.ClearedSilenceOf)

	m.SilentUntil = nil
	v = Validate(g, SendCheck{SenderID: "alice", Now: t0})
	assert.Equal(t, DecisionUserMuted, v.Decision.Code)
}

func TestValidateGroup_AllSilent(t *testing.T) {
	g := groupChat("member", "admin")
	g.Group.Member("admin").Role = RoleAdmin
	g.Group.Settings.IsAllSilent = true

	assert.Equal(t, DecisionUserMuted, Validate(g, SendCheck{SenderID: "member", Now: t0}).Decision.Code)
	assert.True(t, Validate(g, SendCheck{SenderID: "admin", Now: t0}).Decision.OK())
	assert.True(t, Validate(g, SendCheck{SenderID: "owner", Now: t0}).Decision.OK())
}

func TestValidateGroup_ClearedSilenceStillSubjectToAllSilent(t *testing.T) {
	g := groupChat("alice")
	g.Group.Settings.IsAllSilent = true
	past := t0.Add(-time.Second)
	m := g.Group.Member("alice")
	m.IsSilent = true
	m.SilentUntil = &past

	v := Validate(g, SendCheck{SenderID: "alice", Now: t0})
	assert.Equal(t, DecisionUserMuted, v.Decision.Code)
	assert.Equal(t, "alice", v.ClearedSilenceOf)
}

func TestValidateGroup_TypeRules(t *testing.T) {
	g := groupChat("alice")
	assert.Equal(t, DecisionForbidden, Validate(g, SendCheck{SenderID: "alice", Now: t0, Type: MessageTypeAnnouncement}).Decision.Code)
	assert.True(t, Validate(g, SendCheck{SenderID: "owner", Now: t0, Type: MessageTypeAnnouncement}).Decision.OK())
	assert.Equal(t, DecisionForbidden, Validate(g, SendCheck{SenderID: "alice", Now: t0, Type: MessageTypeRequesting}).Decision.Code)
}

func TestCheckContent(t *testing.T) {
	assert.Equal(t, DecisionContentEmpty, CheckContent("  \n", 10).Code)
	assert.Equal(t, DecisionForbidden, CheckContent("hello world", 5).Code)
	assert.True(t, CheckContent("héllo", 5).OK())
	assert.True(t, CheckContent("anything", 0).OK())
}
