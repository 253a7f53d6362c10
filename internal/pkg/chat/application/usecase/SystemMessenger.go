package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

// SystemMessenger enqueues messages the system itself produces: moderation
// events and invitations. They skip send validation but travel the same
// delivery pipeline as user messages.
type SystemMessenger struct {
	Queue MessageEnqueuer
	Log   *zap.Logger
	Now   func() time.Time
	NewID func() string
}

func NewSystemMessenger(queue MessageEnqueuer, log *zap.Logger) *SystemMessenger {
	if log == nil {
		log = zap.NewNop()
	}
	return &SystemMessenger{Queue: queue, Log: log}
}

// Emit posts an Event message into chatID on behalf of senderID.
func (s *SystemMessenger) Emit(ctx context.Context, chatID, senderID, content string, mentions []string) (*chat.Message, error) {
	return s.Send(ctx, chat.Message{
		ChatID:           chatID,
		SenderID:         senderID,
		Content:          content,
		Type:             chat.MessageTypeEvent,
		MentionedUserIDs: mentions,
	})
}

// Send enqueues m, filling in trace id and send time.
func (s *SystemMessenger) Send(ctx context.Context, m chat.Message) (*chat.Message, error) {
	if m.TraceID == "" {
		if s.NewID != nil {
			m.TraceID = s.NewID()
		} else {
			m.TraceID = newID()
		}
	}
	msg, err := chat.NewMessage(m, clockOr(s.Now)())
	if err != nil {
		return nil, err
	}
	if err := s.Queue.Enqueue(ctx, *msg); err != nil {
		s.Log.Error("enqueue system message failed",
			zap.String("chat_id", msg.ChatID), zap.String("trace_id", msg.TraceID), zap.Error(err))
		return nil, persistence(err)
	}
	return msg, nil
}
