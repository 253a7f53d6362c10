package usecase

import (
	"encoding/json"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

// Push event names.
const (
	EventMessage         = "message"
	EventMessageRecalled = "message_recalled"
	EventInboxUpdate     = "inbox_update"
)

// MessageView is the reader-facing shape of a message. Content of a
// canceled message is never included.
type MessageView struct {
	TraceID          string    `json:"traceId"`
	ChatID           string    `json:"chatId"`
	SenderID         string    `json:"senderId"`
	Content          string    `json:"content"`
	Type             string    `json:"type"`
	SentAt           time.Time `json:"sentAt"`
	ServerCaughtAt   time.Time `json:"serverCaughtAt"`
	IsMentioningAll  bool      `json:"isMentioningAll"`
	MentionedUserIDs []string  `json:"mentionedUserIds"`
	IsAnnouncement   bool      `json:"isAnnouncement"`
	IsCanceled       bool      `json:"isCanceled"`
}

func NewMessageView(m chat.Message) MessageView {
	mentions := m.MentionedUserIDs
	if mentions == nil {
		mentions = []string{}
	}
	return MessageView{
		TraceID:          m.TraceID,
		ChatID:           m.ChatID,
		SenderID:         m.SenderID,
		Content:          m.VisibleContent(),
		Type:             m.Type.String(),
		SentAt:           m.SentAt,
		ServerCaughtAt:   m.ServerCaughtAt,
		IsMentioningAll:  m.IsMentioningAll,
		MentionedUserIDs: mentions,
		IsAnnouncement:   m.IsAnnouncement,
		IsCanceled:       m.IsCanceled,
	}
}

// NewMessageViews maps a slice, keeping order.
func NewMessageViews(msgs []chat.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, NewMessageView(m))
	}
	return out
}

// PushEvent is the frame written to realtime subscribers.
type PushEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// RecallNotice tells subscribers a message was canceled.
type RecallNotice struct {
	ChatID  string `json:"chatId"`
	TraceID string `json:"traceId"`
}

// InboxUpdate tells a recipient that one of their chats has a new message.
type InboxUpdate struct {
	ChatID  string `json:"chatId"`
	TraceID string `json:"traceId"`
	Vital   bool   `json:"vital"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(PushEvent{Event: event, Data: data})
}
