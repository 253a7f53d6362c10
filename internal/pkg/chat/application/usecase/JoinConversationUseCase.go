package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

// JoinConversationInput asks to subscribe a websocket session to a chat topic.
type JoinConversationInput struct {
	ConversationID string
	UserID         string
}

// JoinConversationUseCase gates topic subscriptions. Only current
// participants of a chat that is not disabled may listen to it; unknown chats
// answer the same as foreign ones.
type JoinConversationUseCase struct {
	Chats repository.ChatRepository
}

func NewJoinConversationUseCase(chats repository.ChatRepository) *JoinConversationUseCase {
	return &JoinConversationUseCase{Chats: chats}
}

func (uc *JoinConversationUseCase) Execute(ctx context.Context, in JoinConversationInput) error {
	if in.ConversationID == "" || in.UserID == "" {
		return fmt.Errorf("%w: conversation_id and user_id are required", ErrInvalidInput)
	}

	c, err := uc.Chats.FindChat(ctx, in.ConversationID)
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return chat.ErrNotParticipant
	case err != nil:
		return persistence(err)
	}
	if c.Status == chat.ChatStatusGroupDisabled || !c.HasParticipant(in.UserID) {
		return chat.ErrNotParticipant
	}
	return nil
}
