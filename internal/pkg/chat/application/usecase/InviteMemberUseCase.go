package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
	userport "zenchatty/internal/repository/port"
)

type InviteMemberInput struct {
	GroupID    string
	OperatorID string
	TargetID   string
}

// InviteMemberUseCase issues a single-use link bound to one friend of the
// operator and sends it to them as a Requesting message in their private chat.
type InviteMemberUseCase struct {
	Chats     repository.ChatRepository
	Users     userport.UserRepository
	Privates  *CreateChatUseCase
	Messenger *SystemMessenger
	TTL       time.Duration
	Now       func() time.Time
	NewCode   func() string
}

func NewInviteMemberUseCase(chats repository.ChatRepository, users userport.UserRepository, privates *CreateChatUseCase, messenger *SystemMessenger, ttl time.Duration) *InviteMemberUseCase {
	if ttl <= 0 {
		ttl = chat.DefaultInviteTTL
	}
	return &InviteMemberUseCase{Chats: chats, Users: users, Privates: privates, Messenger: messenger, TTL: ttl}
}

// loadGroup returns the group or a denial explaining why it cannot be used.
func loadGroup(ctx context.Context, chats repository.ChatRepository, groupID string) (*chat.Chat, chat.Outcome, error) {
	g, err := chats.FindChat(ctx, groupID)
	if errors.Is(err, chat.ErrNotFound) {
		return nil, chat.Deny("group not found"), nil
	}
	if err != nil {
		return nil, chat.Outcome{}, persistence(err)
	}
	if !g.IsGroup() {
		return nil, chat.Deny("group not found"), nil
	}
	if g.Status != chat.ChatStatusNormal {
		return nil, chat.Deny("this group is disabled"), nil
	}
	return g, chat.Permit(), nil
}

func (uc *InviteMemberUseCase) Execute(ctx context.Context, in InviteMemberInput) (chat.Outcome, *chat.GroupInviteLink, error) {
	if in.GroupID == "" || in.OperatorID == "" || in.TargetID == "" {
		return chat.Outcome{}, nil, invalid("group id, operator id and target id are required")
	}
	if in.OperatorID == in.TargetID {
		return chat.Deny("you cannot invite yourself"), nil, nil
	}

	g, res, err := loadGroup(ctx, uc.Chats, in.GroupID)
	if err != nil || !res.OK {
		return res, nil, err
	}
	if res := g.Group.CanInvite(in.OperatorID, in.TargetID); !res.OK {
		return res, nil, nil
	}

	friends, err := uc.Users.AreFriends(ctx, in.OperatorID, in.TargetID)
	if err != nil {
		return chat.Outcome{}, nil, persistence(err)
	}
	if !friends {
		return chat.Deny("you can only invite your friends"), nil, nil
	}

	now := clockOr(uc.Now)()
	code := newID()
	if uc.NewCode != nil {
		code = uc.NewCode()
	}
	link := chat.GroupInviteLink{
		Code:         code,
		GroupID:      g.ID,
		CreatedBy:    in.OperatorID,
		TargetUserID: in.TargetID,
		CreatedAt:    now,
		ExpiresAt:    now.Add(uc.TTL),
	}
	if err := uc.Chats.SaveInvite(ctx, link); err != nil {
		return chat.Outcome{}, nil, persistence(err)
	}

	pc, err := uc.Privates.EnsurePrivateChat(ctx, in.OperatorID, in.TargetID)
	if err != nil {
		return chat.Outcome{}, nil, err
	}
	_, err = uc.Messenger.Send(ctx, chat.Message{
		ChatID:           pc.ID,
		SenderID:         in.OperatorID,
		Content:          fmt.Sprintf("%s invited you to join %q. Invite code: %s", in.OperatorID, g.Group.Settings.DisplayName, link.Code),
		Type:             chat.MessageTypeRequesting,
		MentionedUserIDs: []string{in.TargetID},
	})
	if err != nil {
		return chat.Outcome{}, nil, err
	}
	return chat.Permit(), &link, nil
}
