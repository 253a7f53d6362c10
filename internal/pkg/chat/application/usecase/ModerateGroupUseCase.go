package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

// ModerateGroupInput names the group and the command to apply to it.
type ModerateGroupInput struct {
	ChatID  string
	Command chat.ModerationCommand
}

// ModerateGroupUseCase applies moderation commands under the group's lock and
// announces every visible change as an Event message.
type ModerateGroupUseCase struct {
	Chats     repository.ChatRepository
	Messages  repository.MessageRepository
	Contacts  repository.ContactRepository
	Messenger *SystemMessenger
	Log       *zap.Logger
	Now       func() time.Time
}

func NewModerateGroupUseCase(chats repository.ChatRepository, messages repository.MessageRepository, contacts repository.ContactRepository, messenger *SystemMessenger, log *zap.Logger) *ModerateGroupUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModerateGroupUseCase{Chats: chats, Messages: messages, Contacts: contacts, Messenger: messenger, Log: log}
}

// Execute returns a failed outcome for authorization problems and an error
// only for infrastructure faults.
func (uc *ModerateGroupUseCase) Execute(ctx context.Context, in ModerateGroupInput) (chat.Outcome, error) {
	if in.ChatID == "" || in.Command == nil {
		return chat.Outcome{}, invalid("chat id and command are required")
	}
	now := clockOr(uc.Now)()

	var outcome chat.Outcome
	err := uc.Chats.UpdateGroup(ctx, in.ChatID, func(c *chat.Chat) (bool, error) {
		outcome = chat.Moderate(c, in.Command, now)
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

	if err := uc.afterCommit(ctx, in.ChatID, in.Command, now); err != nil {
		return outcome, err
	}
	if outcome.Event != "" && uc.Messenger != nil {
		if _, err := uc.Messenger.Emit(ctx, in.ChatID, actorOf(in.Command), outcome.Event, outcome.Mentions); err != nil {
			// the change is committed; only its notification is lost
			uc.Log.Warn("emit moderation event failed", zap.String("chat_id", in.ChatID), zap.Error(err))
		}
	}
	return outcome, nil
}

// afterCommit keeps the per-user projections in line with the membership change.
func (uc *ModerateGroupUseCase) afterCommit(ctx context.Context, chatID string, cmd chat.ModerationCommand, now time.Time) error {
	switch c := cmd.(type) {
	case chat.LeaveGroup:
		target := c.TargetID
		if target == "" {
			target = c.OperatorID
		}
		if err := uc.Contacts.DeleteContact(ctx, target, chatID); err != nil {
			return persistence(err)
		}
	case chat.AddMember:
		if err := uc.Contacts.CreateContacts(ctx, chat.NewContact(c.UserID, chatID, now)); err != nil {
			return persistence(err)
		}
	case chat.RemoveAnnouncement:
		if err := uc.Messages.SetMessageAnnouncement(ctx, c.TraceID, false); err != nil {
			return persistence(err)
		}
	}
	return nil
}

func actorOf(cmd chat.ModerationCommand) string {
	switch c := cmd.(type) {
	case chat.SetAdmin:
		return c.OperatorID
	case chat.SetMemberSilent:
		return c.OperatorID
	case chat.ToggleAllSilent:
		return c.OperatorID
	case chat.SetMemberTitle:
		return c.OperatorID
	case chat.SetMemberNickname:
		return c.OperatorID
	case chat.LeaveGroup:
		return c.OperatorID
	case chat.AddMember:
		return c.UserID
	case chat.RemoveAnnouncement:
		return c.OperatorID
	}
	return ""
}
