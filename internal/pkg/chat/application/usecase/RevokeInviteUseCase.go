package usecase

import (
	"context"
	"errors"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

type RevokeInviteInput struct {
	Code       string
	OperatorID string
}

// RevokeInviteUseCase permanently disables a link. Its creator and the
// group's owners and admins may revoke it.
type RevokeInviteUseCase struct {
	Chats repository.ChatRepository
	Now   func() time.Time
}

func NewRevokeInviteUseCase(chats repository.ChatRepository) *RevokeInviteUseCase {
	return &RevokeInviteUseCase{Chats: chats}
}

func (uc *RevokeInviteUseCase) Execute(ctx context.Context, in RevokeInviteInput) (chat.Outcome, error) {
	if in.Code == "" || in.OperatorID == "" {
		return chat.Outcome{}, invalid("code and operator id are required")
	}
	link, err := uc.Chats.FindInvite(ctx, in.Code)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.Deny("invite link not found"), nil
	}
	if err != nil {
		return chat.Outcome{}, persistence(err)
	}

	if link.CreatedBy != in.OperatorID {
		g, err := uc.Chats.FindChat(ctx, link.GroupID)
		if err != nil && !errors.Is(err, chat.ErrNotFound) {
			return chat.Outcome{}, persistence(err)
		}
		if g == nil || !g.IsGroup() || !g.Group.IsManager(in.OperatorID) {
			return chat.Deny("only the creator, owners and admins can revoke this link"), nil
		}
	}

	changed, err := uc.Chats.MarkInviteUsed(ctx, in.Code, "", clockOr(uc.Now)())
	if err != nil {
		return chat.Outcome{}, persistence(err)
	}
	if !changed {
		return chat.Deny("invite link has already been used or revoked"), nil
	}
	return chat.Permit(), nil
}
