package usecase

import (
	"context"

	chat "zenchatty/internal/pkg/chat/application/domain"
	userport "zenchatty/internal/repository/port"
)

type ConfirmFriendshipInput struct {
	UserID   string
	FriendID string
}

// ConfirmFriendshipUseCase records an accepted friend request and turns the
// pair's informal private chat into a regular one.
type ConfirmFriendshipUseCase struct {
	Users    userport.UserRepository
	Privates *CreateChatUseCase
}

func NewConfirmFriendshipUseCase(users userport.UserRepository, privates *CreateChatUseCase) *ConfirmFriendshipUseCase {
	return &ConfirmFriendshipUseCase{Users: users, Privates: privates}
}

func (uc *ConfirmFriendshipUseCase) Execute(ctx context.Context, in ConfirmFriendshipInput) (*chat.Chat, error) {
	if in.UserID == "" || in.FriendID == "" || in.UserID == in.FriendID {
		return nil, invalid("two distinct user ids are required")
	}
	if err := uc.Privates.requireUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if err := uc.Privates.requireUser(ctx, in.FriendID); err != nil {
		return nil, err
	}
	if err := uc.Users.AddFriendship(ctx, in.UserID, in.FriendID); err != nil {
		return nil, persistence(err)
	}
	return uc.Privates.EnsurePrivateChat(ctx, in.UserID, in.FriendID)
}
