package usecase

import (
	"context"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

type CreateOpenInviteInput struct {
	GroupID    string
	OperatorID string
	TTL        time.Duration // zero uses the default
}

// CreateOpenInviteUseCase issues a link anyone may consume once. Invite-only
// groups refuse such links at consumption.
type CreateOpenInviteUseCase struct {
	Chats   repository.ChatRepository
	TTL     time.Duration
	Now     func() time.Time
	NewCode func() string
}

func NewCreateOpenInviteUseCase(chats repository.ChatRepository, ttl time.Duration) *CreateOpenInviteUseCase {
	if ttl <= 0 {
		ttl = chat.DefaultInviteTTL
	}
	return &CreateOpenInviteUseCase{Chats: chats, TTL: ttl}
}

func (uc *CreateOpenInviteUseCase) Execute(ctx context.Context, in CreateOpenInviteInput) (chat.Outcome, *chat.GroupInviteLink, error) {
	if in.GroupID == "" || in.OperatorID == "" {
		return chat.Outcome{}, nil, invalid("group id and operator id are required")
	}
	g, res, err := loadGroup(ctx, uc.Chats, in.GroupID)
	if err != nil || !res.OK {
		return res, nil, err
	}
	if g.Group.Settings.IsInviteOnly {
		return chat.Deny("invite-only groups accept targeted invitations only"), nil, nil
	}
	if res := g.Group.CanInvite(in.OperatorID, ""); !res.OK {
		return res, nil, nil
	}

	ttl := in.TTL
	if ttl <= 0 {
		ttl = uc.TTL
	}
	now := clockOr(uc.Now)()
	code := newID()
	if uc.NewCode != nil {
		code = uc.NewCode()
	}
	link := chat.GroupInviteLink{
		Code:      code,
		GroupID:   g.ID,
		CreatedBy: in.OperatorID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := uc.Chats.SaveInvite(ctx, link); err != nil {
		return chat.Outcome{}, nil, persistence(err)
	}
	return chat.Permit(), &link, nil
}
