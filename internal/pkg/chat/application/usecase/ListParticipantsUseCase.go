package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

// ListParticipantsInput wraps the conversation identifier to fetch its participants.
type ListParticipantsInput struct {
	ConversationID string
	RequesterID    string
}

// Participant is a chat member as listed to other members.
type Participant struct {
	UserID     string `json:"userId"`
	Role       string `json:"role,omitempty"`
	Nickname   string `json:"nickname,omitempty"`
	GivenTitle string `json:"givenTitle,omitempty"`
	IsSilent   bool   `json:"isSilent,omitempty"`
}

// ListParticipantsUseCase returns the participants of a conversation the requester belongs to.
type ListParticipantsUseCase struct {
	Repo repository.ChatRepository
}

func NewListParticipantsUseCase(repo repository.ChatRepository) *ListParticipantsUseCase {
	return &ListParticipantsUseCase{Repo: repo}
}

func (uc *ListParticipantsUseCase) Execute(ctx context.Context, in ListParticipantsInput) ([]Participant, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", ErrInvalidInput)
	}

	c, err := uc.Repo.FindChat(ctx, in.ConversationID)
	if errors.Is(err, chat.ErrNotFound) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, persistence(err)
	}
	if !c.HasParticipant(in.RequesterID) {
		return nil, chat.ErrNotFound
	}

	if !c.IsGroup() {
		ids := c.Participants()
		out := make([]Participant, 0, len(ids))
		for _, id := range ids {
			out = append(out, Participant{UserID: id})
		}
		return out, nil
	}
	out := make([]Participant, 0, len(c.Group.Members))
	for _, m := range c.Group.Members {
		out = append(out, Participant{
			UserID:     m.UserID,
			Role:       m.Role.String(),
			Nickname:   m.Nickname,
			GivenTitle: m.GivenTitle,
			IsSilent:   m.IsSilent,
		})
	}
	return out, nil
}
