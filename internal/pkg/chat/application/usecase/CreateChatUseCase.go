package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
	userport "zenchatty/internal/repository/port"
)

// CreateChatInput carries the required data to open a new conversation.
// PeerID is used for private chats, MemberIDs and Settings for groups.
type CreateChatInput struct {
	CreatorID string
	Kind      chat.ChatKind
	PeerID    string
	MemberIDs []string
	Settings  chat.GroupSettings
}

// CreateChatUseCase opens private and group chats and creates one Contact
// per participant.
type CreateChatUseCase struct {
	Repo      repository.ChatRepository
	Contacts  repository.ContactRepository
	Users     userport.UserRepository
	Messenger *SystemMessenger
	Now       func() time.Time
	NewID     func() string
}

func NewCreateChatUseCase(repo repository.ChatRepository, contacts repository.ContactRepository, users userport.UserRepository, messenger *SystemMessenger) *CreateChatUseCase {
	return &CreateChatUseCase{Repo: repo, Contacts: contacts, Users: users, Messenger: messenger}
}

func (uc *CreateChatUseCase) id() string {
	if uc.NewID != nil {
		return uc.NewID()
	}
	return newID()
}

// Execute persists a conversation and registers its participants.
func (uc *CreateChatUseCase) Execute(ctx context.Context, in CreateChatInput) (*chat.Chat, error) {
	if in.CreatorID == "" {
		return nil, invalid("creator id is required")
	}
	if err := uc.requireUser(ctx, in.CreatorID); err != nil {
		return nil, err
	}
	switch in.Kind {
	case chat.ChatKindPrivate:
		return uc.EnsurePrivateChat(ctx, in.CreatorID, in.PeerID)
	case chat.ChatKindGroup:
		return uc.createGroup(ctx, in)
	}
	return nil, invalid("unknown chat kind %d", in.Kind)
}

func (uc *CreateChatUseCase) requireUser(ctx context.Context, id string) error {
	_, err := uc.Users.FindByID(ctx, id)
	if errors.Is(err, userport.ErrUserNotFound) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return persistence(err)
	}
	return nil
}

// EnsurePrivateChat returns the private chat between a and b, creating it if
// needed. A chat between friends is formal; an informal chat is promoted once
// the two became friends.
func (uc *CreateChatUseCase) EnsurePrivateChat(ctx context.Context, a, b string) (*chat.Chat, error) {
	if b == "" || a == b {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, chat.ErrSelfChat)
	}
	if err := uc.requireUser(ctx, b); err != nil {
		return nil, err
	}
	friends, err := uc.Users.AreFriends(ctx, a, b)
	if err != nil {
		return nil, persistence(err)
	}
	now := clockOr(uc.Now)()

	existing, err := uc.Repo.FindPrivateChat(ctx, a, b)
	switch {
	case err == nil:
		if existing.Private.IsInformal && friends {
			if err := uc.Repo.SetPrivateInformal(ctx, existing.ID, false); err != nil {
				return nil, persistence(err)
			}
			existing.Private.IsInformal = false
		}
		// contacts may have been removed on one side
		if err := uc.Contacts.CreateContacts(ctx, chat.NewContact(a, existing.ID, now), chat.NewContact(b, existing.ID, now)); err != nil {
			return nil, persistence(err)
		}
		return existing, nil
	case !errors.Is(err, chat.ErrNotFound):
		return nil, persistence(err)
	}

	c := chat.NewPrivateChat(uc.id(), a, b, !friends, now)
	if err := uc.Repo.CreateChat(ctx, c); err != nil {
		// lost a race against the other side creating the same pair
		if again, ferr := uc.Repo.FindPrivateChat(ctx, a, b); ferr == nil {
			return again, nil
		}
		return nil, persistence(err)
	}
	if err := uc.Contacts.CreateContacts(ctx, chat.NewContact(a, c.ID, now), chat.NewContact(b, c.ID, now)); err != nil {
		return nil, persistence(err)
	}
	return &c, nil
}

func (uc *CreateChatUseCase) createGroup(ctx context.Context, in CreateChatInput) (*chat.Chat, error) {
	if in.Settings.DisplayName == "" {
		return nil, invalid("group display name is required")
	}
	for _, uid := range in.MemberIDs {
		if uid == "" || uid == in.CreatorID {
			continue
		}
		if err := uc.requireUser(ctx, uid); err != nil {
			return nil, err
		}
		// adding someone directly needs the same friendship an invitation does
		ok, err := uc.Users.AreFriends(ctx, in.CreatorID, uid)
		if err != nil {
			return nil, persistence(err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrNotFriends, in.CreatorID, uid)
		}
	}

	now := clockOr(uc.Now)()
	c := chat.NewGroupChat(uc.id(), in.CreatorID, in.Settings, in.MemberIDs, now)
	if err := uc.Repo.CreateChat(ctx, c); err != nil {
		return nil, persistence(err)
	}

	contacts := make([]chat.Contact, 0, len(c.Group.Members))
	for _, m := range c.Group.Members {
		contacts = append(contacts, chat.NewContact(m.UserID, c.ID, now))
	}
	if err := uc.Contacts.CreateContacts(ctx, contacts...); err != nil {
		return nil, persistence(err)
	}

	if uc.Messenger != nil {
		// best effort: the group exists either way
		_, _ = uc.Messenger.Emit(ctx, c.ID, in.CreatorID, fmt.Sprintf("%s created the group %q", in.CreatorID, in.Settings.DisplayName), nil)
	}
	return &c, nil
}
