package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

// MessageEnqueuer hands an accepted message to the delivery queue. It returns
// once the queue has taken the message, not once it is delivered.
type MessageEnqueuer interface {
	Enqueue(ctx context.Context, m chat.Message) error
}

// Pusher is the realtime fan-out transport.
type Pusher interface {
	// Push delivers payload to every subscriber of topic.
	Push(topic string, payload []byte) int
	// NotifyUser delivers payload to userID's live session, if any.
	NotifyUser(userID string, payload []byte) bool
}

type noopPusher struct{}

func (noopPusher) Push(string, []byte) int        { return 0 }
func (noopPusher) NotifyUser(string, []byte) bool { return false }

func nowUTC() time.Time { return chat.Stamp(time.Now()) }

func newID() string { return uuid.NewString() }

func clockOr(now func() time.Time) func() time.Time {
	if now == nil {
		return nowUTC
	}
	return now
}
