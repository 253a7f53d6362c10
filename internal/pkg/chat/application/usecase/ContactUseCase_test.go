package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "zenchatty/internal/pkg/chat/application/domain"
	userport "zenchatty/internal/repository/port"
)

func TestListContactsPinnedFirst(t *testing.T) {
	e := newEnv(t)
	first := e.group(t, "owner", "alice")
	second, err := e.create.Execute(e.ctx, CreateChatInput{
		CreatorID: "owner",
		Kind:      chat.ChatKindGroup,
		MemberIDs: []string{"alice"},
		Settings:  chat.GroupSettings{DisplayName: "second"},
	})
	require.NoError(t, err)
	list := NewListContactsUseCase(e.store)

	got, err := list.Execute(e.ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second.ID, got[0].ChatID)

	require.NoError(t, e.contacts.Execute(e.ctx, UpdateContactInput{UserID: "alice", ChatID: first.ID, Action: ContactPin}))
	got, err = list.Execute(e.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got[0].ChatID)
	assert.True(t, got[0].IsPinned)

	require.NoError(t, e.contacts.Execute(e.ctx, UpdateContactInput{UserID: "alice", ChatID: first.ID, Action: ContactUnpin}))
	got, err = list.Execute(e.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got[0].ChatID)
}

func TestUpdateContactMarkRead(t *testing.T) {
	e := newEnv(t)
	g := e.group(t, "owner", "alice")
	e.mustSay(t, g.ID, "owner", "@all hello")
	require.Positive(t, e.contact(t, "alice", g.ID).LastUnreadCount)

	require.NoError(t, e.contacts.Execute(e.ctx, UpdateContactInput{UserID: "alice", ChatID: g.ID, Action: ContactMarkRead}))
	ct := e.contact(t, "alice", g.ID)
	assert.Zero(t, ct.LastUnreadCount)
	assert.False(t, ct.HasVitalUnread)

	err := e.contacts.Execute(e.ctx, UpdateContactInput{UserID: "alice", ChatID: "nope", Action: ContactMarkRead})
	assert.ErrorIs(t, err, chat.ErrNotFound)

	err = e.contacts.Execute(e.ctx, UpdateContactInput{UserID: "alice", ChatID: g.ID, Action: ContactAction(42)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConfirmFriendshipFormalizesChat(t *testing.T) {
	e := newEnv(t)
	e.user(t, "alice", false)
	e.user(t, "bob", true)
	pc, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindPrivate, PeerID: "bob"})
	require.NoError(t, err)
	require.True(t, pc.Private.IsInformal)

	confirm := NewConfirmFriendshipUseCase(e.users, e.create)
	got, err := confirm.Execute(e.ctx, ConfirmFriendshipInput{UserID: "bob", FriendID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, pc.ID, got.ID)
	assert.False(t, got.Private.IsInformal)
	assert.False(t, e.load(t, pc.ID).Private.IsInformal)

	e.mustSay(t, pc.ID, "alice", "friends now")

	_, err = confirm.Execute(e.ctx, ConfirmFriendshipInput{UserID: "bob", FriendID: "ghost"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = confirm.Execute(e.ctx, ConfirmFriendshipInput{UserID: "bob", FriendID: "bob"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateChatRules(t *testing.T) {
	e := newEnv(t)
	e.user(t, "alice", false)
	e.user(t, "bob", false)

	_, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindPrivate, PeerID: "alice"})
	assert.ErrorIs(t, err, chat.ErrSelfChat)

	_, err = e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindGroup, MemberIDs: []string{"bob"}, Settings: chat.GroupSettings{DisplayName: "g"}})
	assert.ErrorIs(t, err, ErrNotFriends)

	_, err = e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindGroup})
	assert.ErrorIs(t, err, ErrInvalidInput)

	a, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "alice", Kind: chat.ChatKindPrivate, PeerID: "bob"})
	require.NoError(t, err)
	b, err := e.create.Execute(e.ctx, CreateChatInput{CreatorID: "bob", Kind: chat.ChatKindPrivate, PeerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	e.contact(t, "alice", a.ID)
	e.contact(t, "bob", a.ID)
}

func TestRegisterUserUpserts(t *testing.T) {
	e := newEnv(t)
	register := NewRegisterUserUseCase(e.users)

	_, err := register.Execute(e.ctx, RegisterUserInput{UserID: "zoe", DisplayName: "Zoe"})
	require.NoError(t, err)
	_, err = register.Execute(e.ctx, RegisterUserInput{UserID: "zoe", DisplayName: "Zoë", AllowStrangerMessages: true})
	require.NoError(t, err)

	u, err := e.users.FindByID(e.ctx, "zoe")
	require.NoError(t, err)
	assert.Equal(t, userport.User{ID: "zoe", DisplayName: "Zoë", AllowStrangerMessages: true, CreatedAt: u.CreatedAt}, *u)

	_, err = register.Execute(e.ctx, RegisterUserInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
