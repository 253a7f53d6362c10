package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	qport "zenchatty/internal/infrastructure/queue/port"
	chat "zenchatty/internal/pkg/chat/application/domain"
	"zenchatty/internal/pkg/chat/application/usecase"
)

// DeliverMessageTaskType is the queue task name for delivering an accepted message.
const DeliverMessageTaskType = "chat:deliver_message"

// DeliverMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type DeliverMessageTaskPayload struct {
	TraceID          string    `json:"traceId"`
	ChatID           string    `json:"chatId"`
	SenderID         string    `json:"senderId"`
	Content          string    `json:"content"`
	MsgType          int16     `json:"msgType"`
	SentAt           time.Time `json:"sentAt"`
	IsMentioningAll  bool      `json:"isMentioningAll,omitempty"`
	MentionedUserIDs []string  `json:"mentionedUserIds,omitempty"`
	IsAnnouncement   bool      `json:"isAnnouncement,omitempty"`
}

// NewDeliverMessageTaskPayload copies the wire fields of m.
func NewDeliverMessageTaskPayload(m chat.Message) DeliverMessageTaskPayload {
	return DeliverMessageTaskPayload{
		TraceID:          m.TraceID,
		ChatID:           m.ChatID,
		SenderID:         m.SenderID,
		Content:          m.Content,
		MsgType:          int16(m.Type),
		SentAt:           m.SentAt,
		IsMentioningAll:  m.IsMentioningAll,
		MentionedUserIDs: m.MentionedUserIDs,
		IsAnnouncement:   m.IsAnnouncement,
	}
}

// Message rebuilds the domain message.
func (p DeliverMessageTaskPayload) Message() chat.Message {
	return chat.Message{
		TraceID:          p.TraceID,
		ChatID:           p.ChatID,
		SenderID:         p.SenderID,
		Content:          p.Content,
		Type:             chat.MessageType(p.MsgType),
		SentAt:           p.SentAt,
		IsMentioningAll:  p.IsMentioningAll,
		MentionedUserIDs: p.MentionedUserIDs,
		IsAnnouncement:   p.IsAnnouncement,
	}
}

// MessagePublisher is the producer side of the delivery queue.
type MessagePublisher struct {
	Client qport.Client
	Queue  string
}

func NewMessagePublisher(client qport.Client, queue string) *MessagePublisher {
	return &MessagePublisher{Client: client, Queue: queue}
}

var _ usecase.MessageEnqueuer = (*MessagePublisher)(nil)

// Enqueue publishes m, using its trace id as the task id.
func (p *MessagePublisher) Enqueue(ctx context.Context, m chat.Message) error {
	body, err := json.Marshal(NewDeliverMessageTaskPayload(m))
	if err != nil {
		return fmt.Errorf("encode deliver payload: %w", err)
	}
	_, err = p.Client.Enqueue(ctx,
		qport.Task{Type: DeliverMessageTaskType, Payload: body},
		qport.EnqueueOption{Queue: p.Queue, TaskID: m.TraceID},
	)
	return err
}

// RegisterDeliverMessageTask binds the consumer to srv. Malformed payloads and
// messages whose chat or sender no longer exist are permanent failures.
func RegisterDeliverMessageTask(srv qport.Server, uc *usecase.DeliverMessageUseCase, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	srv.Register(DeliverMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p DeliverMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			log.Error("dropping undecodable delivery", zap.Error(err))
			return qport.Permanent(fmt.Errorf("decode deliver payload: %w", err))
		}

		err := uc.Execute(ctx, p.Message())
		if errors.Is(err, usecase.ErrUnresolvable) {
			log.Error("dropping undeliverable message",
				zap.String("trace_id", p.TraceID), zap.String("chat_id", p.ChatID), zap.Error(err))
			return qport.Permanent(err)
		}
		return err
	})
}
