package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
	userport "zenchatty/internal/repository/port"
)

type ConsumeInviteInput struct {
	Code   string
	UserID string
}

// ConsumeInviteUseCase admits a user through an invite link. The link is
// consumed and the member added while the group row is locked, and the
// inviter's rights are checked against the group as it is now.
type ConsumeInviteUseCase struct {
	Chats     repository.ChatRepository
	Contacts  repository.ContactRepository
	Users     userport.UserRepository
	Messenger *SystemMessenger
	Log       *zap.Logger
	Now       func() time.Time
}

func NewConsumeInviteUseCase(chats repository.ChatRepository, contacts repository.ContactRepository, users userport.UserRepository, messenger *SystemMessenger, log *zap.Logger) *ConsumeInviteUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsumeInviteUseCase{Chats: chats, Contacts: contacts, Users: users, Messenger: messenger, Log: log}
}

func (uc *ConsumeInviteUseCase) Execute(ctx context.Context, in ConsumeInviteInput) (chat.Outcome, error) {
	if in.Code == "" || in.UserID == "" {
		return chat.Outcome{}, invalid("code and user id are required")
	}
	now := clockOr(uc.Now)()

	link, err := uc.Chats.FindInvite(ctx, in.Code)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.Deny("invite link not found"), nil
	}
	if err != nil {
		return chat.Outcome{}, persistence(err)
	}
	if res := link.CheckUsable(in.UserID, now); !res.OK {
		return res, nil
	}
	if _, err := uc.Users.FindByID(ctx, in.UserID); err != nil {
		if errors.Is(err, userport.ErrUserNotFound) {
			return chat.Deny("user not found"), nil
		}
		return chat.Outcome{}, persistence(err)
	}

	var outcome chat.Outcome
	consumed, err := uc.Chats.ConsumeInvite(ctx, link.Code, in.UserID, now, func(c *chat.Chat) (bool, error) {
		if !c.IsGroup() {
			outcome = chat.Deny("group not found")
			return false, nil
		}
		if link.IsOpen() && c.Group.Settings.IsInviteOnly {
			outcome = chat.Deny("this group only accepts personal invitations")
			return false, nil
		}
		outcome = chat.Moderate(c, chat.AddMember{UserID: in.UserID, InvitedBy: link.CreatedBy}, now)
		return outcome.OK, nil
	})
	if errors.Is(err, chat.ErrNotFound) {
		return chat.Deny("group not found"), nil
	}
	if err != nil {
		return chat.Outcome{}, persistence(err)
	}
	if !outcome.OK {
		return outcome, nil
	}
	if !consumed {
		return chat.Deny("invite link has already been used or revoked"), nil
	}

	if err := uc.Contacts.CreateContacts(ctx, chat.NewContact(in.UserID, link.GroupID, now)); err != nil {
		return outcome, persistence(err)
	}
	if outcome.Event != "" && uc.Messenger != nil {
		if _, err := uc.Messenger.Emit(ctx, link.GroupID, in.UserID, outcome.Event, outcome.Mentions); err != nil {
			uc.Log.Warn("emit join event failed", zap.String("chat_id", link.GroupID), zap.Error(err))
		}
	}
	return outcome, nil
}
