package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType represents the kind of message
// 0=normal, 1=requesting, 2=quote, 3=forward, 4=event, 5=announcement, 6=canceled
type MessageType int16

const (
	MessageTypeNormal       MessageType = 0
	MessageTypeRequesting   MessageType = 1
	MessageTypeQuote        MessageType = 2
	MessageTypeForward      MessageType = 3
	MessageTypeEvent        MessageType = 4
	MessageTypeAnnouncement MessageType = 5
	MessageTypeCanceled     MessageType = 6
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeNormal:
		return "normal"
	case MessageTypeRequesting:
		return "requesting"
	case MessageTypeQuote:
		return "quote"
	case MessageTypeForward:
		return "forward"
	case MessageTypeEvent:
		return "event"
	case MessageTypeAnnouncement:
		return "announcement"
	case MessageTypeCanceled:
		return "canceled"
	}
	return "unknown"
}

// Valid reports whether t is a known type.
func (t MessageType) Valid() bool { return t >= MessageTypeNormal && t <= MessageTypeCanceled }

// UserSendable reports whether clients may submit t. Event messages are
// produced by moderation, Canceled only by recall.
func (t MessageType) UserSendable() bool {
	return t.Valid() && t != MessageTypeEvent && t != MessageTypeCanceled
}

// Message is an entry in a chat. Only IsCanceled and IsAnnouncement change
// after persistence.
type Message struct {
	TraceID          string      `db:"trace_id"`
	ChatID           string      `db:"conversation_id"`
	SenderID         string      `db:"sender_id"`
	Content          string      `db:"content"`
	Type             MessageType `db:"msg_type"`
	SentAt           time.Time   `db:"sent_at"`
	ServerCaughtAt   time.Time   `db:"server_caught_at"` // set when persisted
	IsMentioningAll  bool        `db:"is_mentioning_all"`
	MentionedUserIDs []string    `db:"mentioned_user_ids"`
	IsAnnouncement   bool        `db:"is_announcement"`
	IsCanceled       bool        `db:"is_canceled"`
}

// VisibleContent is the content a reader may see: empty once canceled.
func (m Message) VisibleContent() string {
	if m.IsCanceled {
		return ""
	}
	return m.Content
}

// IsVitalFor reports whether the message is high priority for userID.
func (m Message) IsVitalFor(userID string) bool {
	if m.IsAnnouncement || m.Type == MessageTypeAnnouncement || m.IsMentioningAll {
		return true
	}
	for _, id := range m.MentionedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Mentions reports whether userID is mentioned explicitly.
func (m Message) Mentions(userID string) bool {
	for _, id := range m.MentionedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Canceled returns a copy flagged as recalled.
func (m Message) Canceled() Message {
	m.IsCanceled = true
	return m
}

// CheckContent is the chat-independent content pre-check.
func CheckContent(content string, maxRunes int) Decision {
	if strings.TrimSpace(content) == "" {
		return Reject(DecisionContentEmpty, "message content is empty")
	}
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		return Rejectf(DecisionForbidden, "message content exceeds %d characters", maxRunes)
	}
	return Allow()
}

// TimePrecision is the resolution of stored message timestamps. Postgres
// timestamptz keeps microseconds, so every copy of a message (queued,
// cached, stored) is cut to the same value and paging cursors compare equal.
const TimePrecision = time.Microsecond

// Stamp normalizes t to UTC at TimePrecision.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(TimePrecision)
}

// NewMessage normalizes m: trims content, dedupes mentions and stamps SentAt.
func NewMessage(m Message, now time.Time) (*Message, error) {
	if m.ChatID == "" || m.SenderID == "" {
		return nil, ErrMissingIdentity
	}
	if m.TraceID == "" {
		return nil, ErrMissingTraceID
	}
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return nil, ErrEmptyMessage
	}
	if m.SentAt.IsZero() {
		m.SentAt = now
	}
	m.SentAt = Stamp(m.SentAt)
	m.MentionedUserIDs = dedupe(m.MentionedUserIDs)
	if m.Type == MessageTypeAnnouncement {
		m.IsAnnouncement = true
	}
	return &m, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
