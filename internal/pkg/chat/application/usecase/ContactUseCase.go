package usecase

import (
	"context"
	"errors"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

// ListContactsUseCase returns a user's inbox: pinned chats first, then by
// most recent activity.
type ListContactsUseCase struct {
	Contacts repository.ContactRepository
}

func NewListContactsUseCase(contacts repository.ContactRepository) *ListContactsUseCase {
	return &ListContactsUseCase{Contacts: contacts}
}

func (uc *ListContactsUseCase) Execute(ctx context.Context, userID string) ([]chat.Contact, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	contacts, err := uc.Contacts.ListContactsByUser(ctx, userID)
	if err != nil {
		return nil, persistence(err)
	}
	return contacts, nil
}

// ContactAction is a per-user change to one chat's contact row.
type ContactAction int

const (
	ContactMarkRead ContactAction = iota
	ContactBlock
	ContactUnblock
	ContactPin
	ContactUnpin
)

type UpdateContactInput struct {
	UserID string
	ChatID string
	Action ContactAction
}

// UpdateContactUseCase applies read, block and pin changes. Blocking a
// private chat stops the other party from sending into it.
type UpdateContactUseCase struct {
	Contacts repository.ContactRepository
}

func NewUpdateContactUseCase(contacts repository.ContactRepository) *UpdateContactUseCase {
	return &UpdateContactUseCase{Contacts: contacts}
}

// Execute returns chat.ErrNotFound when the user has no contact for the chat.
func (uc *UpdateContactUseCase) Execute(ctx context.Context, in UpdateContactInput) error {
	if in.UserID == "" || in.ChatID == "" {
		return invalid("user id and chat id are required")
	}
	var err error
	switch in.Action {
	case ContactMarkRead:
		err = uc.Contacts.ResetUnread(ctx, in.UserID, in.ChatID)
	case ContactBlock, ContactUnblock:
		err = uc.Contacts.SetBlocked(ctx, in.UserID, in.ChatID, in.Action == ContactBlock)
	case ContactPin, ContactUnpin:
		err = uc.Contacts.SetPinned(ctx, in.UserID, in.ChatID, in.Action == ContactPin)
	default:
		return invalid("unknown contact action %d", in.Action)
	}
	if errors.Is(err, chat.ErrNotFound) {
		return chat.ErrNotFound
	}
	if err != nil {
		return persistence(err)
	}
	return nil
}
