package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
	userport "zenchatty/internal/repository/port"
)

// DefaultMaxContentLength is the content limit in runes when none is configured.
const DefaultMaxContentLength = 4000

// SendRequest is what a sender asks to post.
type SendRequest struct {
	ChatID     string
	SenderID   string
	Content    string
	Type       chat.MessageType
	ViaGroupID string
}

// SendPolicy loads the facts a send decision depends on, runs the pure
// validation and persists the silence it may lift.
type SendPolicy struct {
	Chats            repository.ChatRepository
	Contacts         repository.ContactRepository
	Users            userport.UserRepository
	MaxContentLength int
	Log              *zap.Logger
	Now              func() time.Time
}

func NewSendPolicy(chats repository.ChatRepository, contacts repository.ContactRepository, users userport.UserRepository, maxContentLength int, log *zap.Logger) *SendPolicy {
	if maxContentLength <= 0 {
		maxContentLength = DefaultMaxContentLength
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SendPolicy{Chats: chats, Contacts: contacts, Users: users, MaxContentLength: maxContentLength, Log: log}
}

// Check returns the decision for req. A non-nil error means a fact could not
// be loaded; the decision is then meaningless.
func (p *SendPolicy) Check(ctx context.Context, req SendRequest) (chat.Decision, error) {
	if d := chat.CheckContent(req.Content, p.MaxContentLength); !d.OK() {
		return d, nil
	}
	if !req.Type.UserSendable() {
		return chat.Rejectf(chat.DecisionForbidden, "messages of type %s cannot be sent", req.Type), nil
	}

	c, err := p.Chats.FindChat(ctx, req.ChatID)
	if errors.Is(err, chat.ErrNotFound) {
		return chat.Reject(chat.DecisionChatNotFound, "chat not found"), nil
	}
	if err != nil {
		return chat.Decision{}, persistence(err)
	}

	if _, err := p.Users.FindByID(ctx, req.SenderID); err != nil {
		if errors.Is(err, userport.ErrUserNotFound) {
			return chat.Reject(chat.DecisionSenderNotFound, "sender not found"), nil
		}
		return chat.Decision{}, persistence(err)
	}

	in, err := p.facts(ctx, c, req)
	if err != nil {
		return chat.Decision{}, err
	}

	verdict := chat.Validate(c, in)
	if verdict.ClearedSilenceOf != "" {
		if err := p.Chats.ClearMemberSilence(ctx, c.ID, verdict.ClearedSilenceOf); err != nil {
			// the in-memory decision stands; the next send retries the write
			p.Log.Warn("clear expired silence failed",
				zap.String("chat_id", c.ID), zap.String("user_id", verdict.ClearedSilenceOf), zap.Error(err))
		}
	}
	return verdict.Decision, nil
}

func (p *SendPolicy) facts(ctx context.Context, c *chat.Chat, req SendRequest) (chat.SendCheck, error) {
	in := chat.SendCheck{
		SenderID:   req.SenderID,
		Type:       req.Type,
		Now:        clockOr(p.Now)(),
		ViaGroupID: req.ViaGroupID,
	}
	if c.Kind != chat.ChatKindPrivate || c.Private == nil {
		return in, nil
	}
	receiver := c.Private.Other(req.SenderID)
	if receiver == "" {
		return in, nil
	}

	has, err := p.hasContact(ctx, req.SenderID, c.ID)
	if err != nil {
		return in, err
	}
	in.SenderHasContact = has

	rc, err := p.Contacts.FindContact(ctx, receiver, c.ID)
	switch {
	case errors.Is(err, chat.ErrNotFound):
	case err != nil:
		return in, persistence(err)
	default:
		in.ReceiverBlockedSender = rc.IsBlocked
	}

	if in.AreFriends, err = p.Users.AreFriends(ctx, req.SenderID, receiver); err != nil {
		return in, persistence(err)
	}

	ru, err := p.Users.FindByID(ctx, receiver)
	switch {
	case errors.Is(err, userport.ErrUserNotFound):
	case err != nil:
		return in, persistence(err)
	default:
		in.ReceiverAllowsStrangers = ru.AllowStrangerMessages
	}

	if req.ViaGroupID != "" {
		g, err := p.Chats.FindChat(ctx, req.ViaGroupID)
		switch {
		case errors.Is(err, chat.ErrNotFound):
		case err != nil:
			return in, persistence(err)
		default:
			in.ViaGroup = g
		}
	}
	return in, nil
}

func (p *SendPolicy) hasContact(ctx context.Context, userID, chatID string) (bool, error) {
	_, err := p.Contacts.FindContact(ctx, userID, chatID)
	if errors.Is(err, chat.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return true, nil
}
