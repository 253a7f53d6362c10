package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moderatedGroup() *Chat {
	g := groupChat("admin", "alice", "bob")
	g.Group.Member("admin").Role = RoleAdmin
	g.Group.Member("alice").InvitedBy = "admin"
	return g
}

func TestModerate_PrivateChatRejects(t *testing.T) {
	res := Moderate(privateChat(false), ToggleAllSilent{OperatorID: "alice", IsSilent: true}, t0)
	assert.False(t, res.OK)
}

func TestModerate_DisabledGroupRejects(t *testing.T) {
	g := moderatedGroup()
	g.Status = ChatStatusGroupDisabled
	res := Moderate(g, ToggleAllSilent{OperatorID: "owner", IsSilent: true}, t0)
	assert.False(t, res.OK)
	assert.False(t, g.Group.Settings.IsAllSilent)
}

func TestSetAdmin(t *testing.T) {
	g := moderatedGroup()

	res := Moderate(g, SetAdmin{OperatorID: "admin", TargetID: "alice", IsAdmin: true}, t0)
	assert.False(t, res.OK)

	res = Moderate(g, SetAdmin{OperatorID: "owner", TargetID: "alice", IsAdmin: true}, t0)
	require.True(t, res.OK)
	assert.Equal(t, RoleAdmin, g.Group.Member("alice").Role)
	assert.NotEmpty(t, res.Event)
	assert.Equal(t, []string{"alice"}, res.Mentions)

	res = Moderate(g, SetAdmin{OperatorID: "owner", TargetID: "owner", IsAdmin: false}, t0)
	assert.False(t, res.OK)
	assert.Equal(t, RoleOwner, g.Group.Member("owner").Role)
}

func TestSetMemberSilent(t *testing.T) {
	g := moderatedGroup()
	d := 10 * time.Minute

	res := Moderate(g, SetMemberSilent{OperatorID: "alice", TargetID: "bob", IsSilent: true}, t0)
	assert.False(t, res.OK, "members cannot mute")

	res = Moderate(g, SetMemberSilent{OperatorID: "owner", TargetID: "admin", IsSilent: true}, t0)
	assert.False(t, res.OK, "admins cannot be muted")

	res = Moderate(g, SetMemberSilent{OperatorID: "admin", TargetID: "bob", IsSilent: true, Duration: &d}, t0)
	require.True(t, res.OK)
	bob := g.Group.Member("bob")
	require.NotNil(t, bob.SilentUntil)
	assert.True(t, bob.IsSilent)
	assert.Equal(t, t0.Add(d), *bob.SilentUntil)
	assert.True(t, bob.MutedAt(t0))
	assert.False(t, bob.MutedAt(t0.Add(d)))

	res = Moderate(g, SetMemberSilent{OperatorID: "admin", TargetID: "bob", IsSilent: false}, t0)
	require.True(t, res.OK)
	assert.False(t, g.Group.Member("bob").IsSilent)
}

func TestSetMemberSilent_Indefinite(t *testing.T) {
	g := moderatedGroup()
	res := Moderate(g, SetMemberSilent{OperatorID: "owner", TargetID: "bob", IsSilent: true}, t0)
	require.True(t, res.OK)
	assert.Nil(t, g.Group.Member("bob").SilentUntil)
	assert.True(t, g.Group.Member("bob").MutedAt(t0.Add(1000*time.Hour)))
}

func TestToggleAllSilent(t *testing.T) {
	g := moderatedGroup()
	assert.False(t, Moderate(g, ToggleAllSilent{OperatorID: "alice", IsSilent: true}, t0).OK)

	res := Moderate(g, ToggleAllSilent{OperatorID: "admin", IsSilent: true, Reason: "spam wave"}, t0)
	require.True(t, res.OK)
	assert.True(t, g.Group.Settings.IsAllSilent)
	assert.Contains(t, res.Event, "spam wave")

	res = Moderate(g, ToggleAllSilent{OperatorID: "admin", IsSilent: true}, t0)
	assert.True(t, res.OK)
	assert.Empty(t, res.Event, "no-op emits nothing")
}

func TestSetMemberTitleAndNickname(t *testing.T) {
	g := moderatedGroup()
	assert.False(t, Moderate(g, SetMemberTitle{OperatorID: "admin", TargetID: "bob", Title: "x"}, t0).OK)
	require.True(t, Moderate(g, SetMemberTitle{OperatorID: "owner", TargetID: "bob", Title: "scribe"}, t0).OK)
	assert.Equal(t, "scribe", g.Group.Member("bob").GivenTitle)

	assert.True(t, Moderate(g, SetMemberNickname{OperatorID: "bob", TargetID: "bob", Nickname: "b"}, t0).OK)
	assert.False(t, Moderate(g, SetMemberNickname{OperatorID: "alice", TargetID: "bob", Nickname: "x"}, t0).OK)
	assert.True(t, Moderate(g, SetMemberNickname{OperatorID: "admin", TargetID: "owner", Nickname: "boss"}, t0).OK)
	assert.True(t, Moderate(g, SetMemberNickname{OperatorID: "admin", TargetID: "bob", Nickname: "bobby"}, t0).OK)
	assert.Equal(t, "bobby", g.Group.Member("bob").Nickname)
}

func TestLeaveGroup(t *testing.T) {
	g := moderatedGroup()

	assert.False(t, Moderate(g, LeaveGroup{OperatorID: "owner"}, t0).OK, "owner cannot leave")
	assert.False(t, Moderate(g, LeaveGroup{OperatorID: "admin", TargetID: "owner"}, t0).OK)
	assert.False(t, Moderate(g, LeaveGroup{OperatorID: "bob", TargetID: "admin"}, t0).OK, "members cannot remove admins")

	res := Moderate(g, LeaveGroup{OperatorID: "alice"}, t0)
	require.True(t, res.OK)
	assert.Nil(t, g.Group.Member("alice"))
	assert.Equal(t, []string{"admin"}, res.Mentions, "inviter is notified")

	res = Moderate(g, LeaveGroup{OperatorID: "admin", TargetID: "bob"}, t0)
	require.True(t, res.OK)
	assert.Nil(t, g.Group.Member("bob"))
	assert.Equal(t, []string{"bob", "owner"}, res.Mentions)
}

func TestLeaveGroupAllowsEqualRank(t *testing.T) {
	g := groupChat("a1", "a2", "m1", "m2")
	g.Group.Member("a1").Role = RoleAdmin
	g.Group.Member("a2").Role = RoleAdmin

	res := Moderate(g, LeaveGroup{OperatorID: "a1", TargetID: "a2"}, t0)
	require.True(t, res.OK, res.Reason)
	assert.Nil(t, g.Group.Member("a2"))

	res = Moderate(g, LeaveGroup{OperatorID: "m1", TargetID: "m2"}, t0)
	require.True(t, res.OK, res.Reason)
	assert.Nil(t, g.Group.Member("m2"))

	res = Moderate(g, LeaveGroup{OperatorID: "m1", TargetID: "a1"}, t0)
	assert.Equal(t, "you can only remove members of your role or below", res.Reason)
	assert.NotNil(t, g.Group.Member("a1"))
}

func TestAddMember_RechecksInviter(t *testing.T) {
	g := moderatedGroup()

	assert.False(t, Moderate(g, AddMember{UserID: "carol", InvitedBy: "alice"}, t0).OK, "member inviter")
	assert.False(t, Moderate(g, AddMember{UserID: "carol", InvitedBy: "gone"}, t0).OK, "departed inviter")
	assert.False(t, Moderate(g, AddMember{UserID: "bob", InvitedBy: "admin"}, t0).OK, "already a member")

	res := Moderate(g, AddMember{UserID: "carol", InvitedBy: "admin"}, t0)
	require.True(t, res.OK)
	carol := g.Group.Member("carol")
	require.NotNil(t, carol)
	assert.Equal(t, RoleMember, carol.Role)
	assert.Equal(t, "admin", carol.InvitedBy)

	// demoted inviter loses the right
	require.True(t, Moderate(g, SetAdmin{OperatorID: "owner", TargetID: "admin", IsAdmin: false}, t0).OK)
	assert.False(t, Moderate(g, AddMember{UserID: "dave", InvitedBy: "admin"}, t0).OK)
}

func TestRemoveAnnouncement(t *testing.T) {
	g := moderatedGroup()
	g.Group.AddAnnouncement("m1")

	assert.False(t, Moderate(g, RemoveAnnouncement{OperatorID: "bob", TraceID: "m1"}, t0).OK)
	assert.False(t, Moderate(g, RemoveAnnouncement{OperatorID: "owner", TraceID: "nope"}, t0).OK)
	require.True(t, Moderate(g, RemoveAnnouncement{OperatorID: "owner", TraceID: "m1"}, t0).OK)
	assert.Empty(t, g.Group.Announcements)
}

func TestCanInvite(t *testing.T) {
	g := moderatedGroup()
	assert.False(t, g.Group.CanInvite("alice", "carol").OK)
	assert.False(t, g.Group.CanInvite("admin", "bob").OK)
	assert.True(t, g.Group.CanInvite("admin", "carol").OK)
	assert.True(t, g.Group.CanInvite("owner", "").OK)
}

func TestInviteLinkCheckUsable(t *testing.T) {
	l := GroupInviteLink{Code: "c", GroupID: "g1", CreatedBy: "admin", TargetUserID: "carol", CreatedAt: t0, ExpiresAt: t0.Add(DefaultInviteTTL)}

	assert.True(t, l.CheckUsable("carol", t0).OK)
	assert.False(t, l.CheckUsable("dave", t0).OK)
	assert.False(t, l.CheckUsable("carol", t0.Add(DefaultInviteTTL)).OK)

	l.MarkUsed("carol", t0)
	assert.False(t, l.CheckUsable("carol", t0).OK)

	open := GroupInviteLink{ExpiresAt: t0.Add(time.Hour)}
	assert.True(t, open.IsOpen())
	open.Revoke(t0)
	assert.False(t, open.CheckUsable("anyone", t0).OK)
}
