package repository

import (
	"context"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
)

// Lookups that find nothing return an error wrapping chat.ErrNotFound.

// GroupMutation changes a loaded group. Returning save=false leaves the
// stored state untouched.
type GroupMutation func(c *chat.Chat) (save bool, err error)

// ChatRepository persists chats with their group state and invite links.
type ChatRepository interface {
	// CreateChat stores c with its members in one transaction.
	CreateChat(ctx context.Context, c chat.Chat) error
	FindChat(ctx context.Context, chatID string) (*chat.Chat, error)
	// FindPrivateChat finds the private chat between two users in either direction.
	FindPrivateChat(ctx context.Context, userA, userB string) (*chat.Chat, error)
	// UpdateGroup loads the group under a row lock, runs fn and writes back
	// settings, members and announcements when fn asks to save.
	UpdateGroup(ctx context.Context, chatID string, fn GroupMutation) error
	// ClearMemberSilence lifts an expired silence found during validation.
	ClearMemberSilence(ctx context.Context, chatID, userID string) error
	AppendAnnouncement(ctx context.Context, chatID, traceID string) error
	RemoveAnnouncement(ctx context.Context, chatID, traceID string) error
	SetPrivateInformal(ctx context.Context, chatID string, informal bool) error

	SaveInvite(ctx context.Context, l chat.GroupInviteLink) error
	FindInvite(ctx context.Context, code string) (*chat.GroupInviteLink, error)
	// MarkInviteUsed consumes the link if it is still unused and reports
	// whether this call was the one that consumed it.
	MarkInviteUsed(ctx context.Context, code, usedBy string, at time.Time) (bool, error)
	// ConsumeInvite locks the link's group, runs fn and, when fn asks to
	// save, marks the link used by userID and writes the group in the same
	// transaction. It reports false and changes nothing when fn declines or
	// the link was already used.
	ConsumeInvite(ctx context.Context, code, userID string, at time.Time, fn GroupMutation) (bool, error)
}

// MessageRepository persists messages keyed by trace id.
type MessageRepository interface {
	// SaveMessage inserts m and reports false when the trace id was already stored.
	SaveMessage(ctx context.Context, m chat.Message) (inserted bool, err error)
	FindMessage(ctx context.Context, traceID string) (*chat.Message, error)
	// ListMessagesBefore returns up to limit messages of chatID sent strictly
	// before before (zero = no bound), newest first.
	ListMessagesBefore(ctx context.Context, chatID string, before time.Time, limit int) ([]chat.Message, error)
	// ListLatestMessages returns the newest limit messages, newest first.
	ListLatestMessages(ctx context.Context, chatID string, limit int) ([]chat.Message, error)
	// MarkMessageCanceled flips the cancel flag and reports whether it changed.
	MarkMessageCanceled(ctx context.Context, traceID string) (bool, error)
	SetMessageAnnouncement(ctx context.Context, traceID string, on bool) error
}

// ContactRepository persists per-user views of chats.
type ContactRepository interface {
	// CreateContacts inserts rows that do not exist yet.
	CreateContacts(ctx context.Context, contacts ...chat.Contact) error
	FindContact(ctx context.Context, hostUserID, chatID string) (*chat.Contact, error)
	ListContactsByChat(ctx context.Context, chatID string) ([]chat.Contact, error)
	// ListContactsByUser orders pinned first, then most recently used.
	ListContactsByUser(ctx context.Context, hostUserID string) ([]chat.Contact, error)
	// IncrementUnread atomically bumps the unread counter and ORs the vital flag.
	IncrementUnread(ctx context.Context, hostUserID, chatID string, vital bool, at time.Time) error
	ResetUnread(ctx context.Context, hostUserID, chatID string) error
	SetBlocked(ctx context.Context, hostUserID, chatID string, blocked bool) error
	SetPinned(ctx context.Context, hostUserID, chatID string, pinned bool) error
	DeleteContact(ctx context.Context, hostUserID, chatID string) error
}
