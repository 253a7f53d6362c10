package chat

import "time"

// Contact is one user's view of one chat: unread bookkeeping plus per-user
// flags. Every participant of a chat owns exactly one Contact for it.
type Contact struct {
	HostUserID      string    `db:"host_user_id"`
	ChatID          string    `db:"conversation_id"`
	LastUnreadCount int       `db:"last_unread_count"`
	HasVitalUnread  bool      `db:"has_vital_unread"`
	IsBlocked       bool      `db:"is_blocked"`
	IsPinned        bool      `db:"is_pinned"`
	LastUsed        time.Time `db:"last_used"`
}

// NewContact returns a fresh contact row for host in chatID.
func NewContact(hostUserID, chatID string, now time.Time) Contact {
	return Contact{HostUserID: hostUserID, ChatID: chatID, LastUsed: now}
}
