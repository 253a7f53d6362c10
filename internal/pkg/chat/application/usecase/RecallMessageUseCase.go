package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/persistence/recency"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

// DefaultRecallWindow is how long a sender may recall their own message.
const DefaultRecallWindow = 3 * time.Minute

// RecallResult is the outcome of a recall request.
type RecallResult int

const (
	RecallOK RecallResult = iota
	RecallForbidden
	RecallAlreadyCanceled
	RecallNotFound
)

func (r RecallResult) String() string {
	switch r {
	case RecallOK:
		return "ok"
	case RecallForbidden:
		return "forbidden"
	case RecallAlreadyCanceled:
		return "already_canceled"
	case RecallNotFound:
		return "not_found"
	}
	return "unknown"
}

type RecallInput struct {
	TraceID     string
	RequesterID string
}

// RecallMessageUseCase cancels a persisted message. The row keeps its
// content; readers stop seeing it.
type RecallMessageUseCase struct {
	Chats    repository.ChatRepository
	Messages repository.MessageRepository
	Cache    *recency.Cache
	Pusher   Pusher
	Window   time.Duration
	Log      *zap.Logger
	Now      func() time.Time
}

func NewRecallMessageUseCase(chats repository.ChatRepository, messages repository.MessageRepository, cache *recency.Cache, pusher Pusher, window time.Duration, log *zap.Logger) *RecallMessageUseCase {
	if window <= 0 {
		window = DefaultRecallWindow
	}
	if pusher == nil {
		pusher = noopPusher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RecallMessageUseCase{Chats: chats, Messages: messages, Cache: cache, Pusher: pusher, Window: window, Log: log}
}

func (uc *RecallMessageUseCase) Execute(ctx context.Context, in RecallInput) (RecallResult, error) {
	if in.TraceID == "" || in.RequesterID == "" {
		return RecallNotFound, invalid("trace id and requester id are required")
	}

	m, err := uc.Messages.FindMessage(ctx, in.TraceID)
	if errors.Is(err, chat.ErrNotFound) {
		return RecallNotFound, nil
	}
	if err != nil {
		return RecallNotFound, persistence(err)
	}

	c, err := uc.Chats.FindChat(ctx, m.ChatID)
	if errors.Is(err, chat.ErrNotFound) {
		return RecallNotFound, nil
	}
	if err != nil {
		return RecallNotFound, persistence(err)
	}
	if !c.HasParticipant(in.RequesterID) {
		// do not reveal messages of chats the requester cannot see
		return RecallNotFound, nil
	}
	if m.IsCanceled {
		return RecallAlreadyCanceled, nil
	}
	if !uc.allowed(c, *m, in.RequesterID) {
		return RecallForbidden, nil
	}

	changed, err := uc.Messages.MarkMessageCanceled(ctx, m.TraceID)
	if err != nil {
		return RecallNotFound, persistence(err)
	}
	if !changed {
		return RecallAlreadyCanceled, nil
	}

	canceled := m.Canceled()
	if uc.Cache != nil && uc.Cache.RemoveOne(canceled.ChatID, canceled.TraceID) {
		uc.Cache.Insert(canceled)
	}
	if c.IsGroup() && c.Group.HasAnnouncement(canceled.TraceID) {
		if err := uc.Chats.RemoveAnnouncement(ctx, c.ID, canceled.TraceID); err != nil {
			uc.Log.Warn("remove recalled announcement failed", zap.String("trace_id", canceled.TraceID), zap.Error(err))
		}
	}

	if payload, err := encodeEvent(EventMessageRecalled, RecallNotice{ChatID: canceled.ChatID, TraceID: canceled.TraceID}); err == nil {
		uc.Pusher.Push(canceled.ChatID, payload)
	}
	uc.Log.Info("message recalled", zap.String("trace_id", canceled.TraceID), zap.String("requester_id", in.RequesterID))
	return RecallOK, nil
}

func (uc *RecallMessageUseCase) allowed(c *chat.Chat, m chat.Message, requesterID string) bool {
	if c.IsGroup() {
		if member := c.Group.Member(requesterID); member != nil && member.Role.CanManage() {
			return true
		}
	}
	if m.SenderID != requesterID {
		return false
	}
	window := uc.Window
	if window <= 0 {
		window = DefaultRecallWindow
	}
	return clockOr(uc.Now)().Sub(m.SentAt) <= window
}
