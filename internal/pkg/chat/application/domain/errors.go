package chat

import "errors"

// Domain-level errors for chat behaviors
var (
	ErrNotFound        = errors.New("chat: not found")
	ErrMalformedChat   = errors.New("chat: malformed chat state")
	ErrNotParticipant  = errors.New("chat: user is not a participant in the conversation")
	ErrMissingIdentity = errors.New("chat: conversation_id and sender_id are required")
	ErrMissingTraceID  = errors.New("chat: trace id is required")
	ErrEmptyMessage    = errors.New("chat: empty message")
	ErrSelfChat        = errors.New("chat: a private chat needs two distinct users")
)
