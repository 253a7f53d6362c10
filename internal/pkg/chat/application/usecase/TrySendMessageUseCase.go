package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

// TrySendInput is a user's request to post into a chat.
type TrySendInput struct {
	ChatID           string
	SenderID         string
	Content          string
	Type             chat.MessageType
	IsMentioningAll  bool
	MentionedUserIDs []string
	ViaGroupID       string
}

// TrySendMessageUseCase validates a message synchronously and hands accepted
// ones to the delivery queue. It never waits for persistence.
type TrySendMessageUseCase struct {
	Policy *SendPolicy
	Queue  MessageEnqueuer
	Log    *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewTrySendMessageUseCase(policy *SendPolicy, queue MessageEnqueuer, log *zap.Logger) *TrySendMessageUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrySendMessageUseCase{Policy: policy, Queue: queue, Log: log}
}

// Execute returns the decision and, on success, the enqueued message.
// Infrastructure faults and panics surface as an InternalError decision.
func (uc *TrySendMessageUseCase) Execute(ctx context.Context, in TrySendInput) (d chat.Decision, msg *chat.Message) {
	defer func() {
		if r := recover(); r != nil {
			uc.Log.Error("try send panicked",
				zap.String("chat_id", in.ChatID), zap.String("sender_id", in.SenderID), zap.Any("panic", r))
			d, msg = chat.Internal(), nil
		}
	}()

	d, err := uc.Policy.Check(ctx, SendRequest{
		ChatID:     in.ChatID,
		SenderID:   in.SenderID,
		Content:    in.Content,
		Type:       in.Type,
		ViaGroupID: in.ViaGroupID,
	})
	if err != nil {
		uc.Log.Error("send validation failed", zap.String("chat_id", in.ChatID), zap.String("sender_id", in.SenderID), zap.Error(err))
		return chat.Internal(), nil
	}
	if !d.OK() {
		uc.Log.Debug("send rejected",
			zap.String("chat_id", in.ChatID), zap.String("sender_id", in.SenderID), zap.Stringer("decision", d.Code))
		return d, nil
	}

	genID := uc.NewID
	if genID == nil {
		genID = newID
	}
	msg, err = chat.NewMessage(chat.Message{
		TraceID:          genID(),
		ChatID:           in.ChatID,
		SenderID:         in.SenderID,
		Content:          in.Content,
		Type:             in.Type,
		IsMentioningAll:  in.IsMentioningAll,
		MentionedUserIDs: in.MentionedUserIDs,
	}, clockOr(uc.Now)())
	if err != nil {
		uc.Log.Error("build message failed", zap.String("chat_id", in.ChatID), zap.Error(err))
		return chat.Internal(), nil
	}

	if err := uc.Queue.Enqueue(ctx, *msg); err != nil {
		uc.Log.Error("enqueue message failed",
			zap.String("chat_id", msg.ChatID), zap.String("trace_id", msg.TraceID), zap.Error(err))
		return chat.Internal(), nil
	}
	return chat.Allow(), msg
}
