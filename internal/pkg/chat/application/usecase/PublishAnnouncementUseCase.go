package usecase

import (
	"context"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

type PublishAnnouncementInput struct {
	GroupID    string
	OperatorID string
	Content    string
}

// PublishAnnouncementUseCase posts an Announcement message. Send validation
// restricts it to owners and admins; delivery pins its trace id on the group.
type PublishAnnouncementUseCase struct {
	Send *TrySendMessageUseCase
}

func NewPublishAnnouncementUseCase(send *TrySendMessageUseCase) *PublishAnnouncementUseCase {
	return &PublishAnnouncementUseCase{Send: send}
}

func (uc *PublishAnnouncementUseCase) Execute(ctx context.Context, in PublishAnnouncementInput) (chat.Decision, *chat.Message) {
	return uc.Send.Execute(ctx, TrySendInput{
		ChatID:          in.GroupID,
		SenderID:        in.OperatorID,
		Content:         in.Content,
		Type:            chat.MessageTypeAnnouncement,
		IsMentioningAll: true,
	})
}
