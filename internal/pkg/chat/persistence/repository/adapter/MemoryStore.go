package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

// MemoryStore keeps chats, messages, contacts and invites in process. It backs
// the "memory" store backend and the use case tests. Values are copied in
// and out, so callers never share state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	chats    map[string]*chat.Chat
	messages map[string]chat.Message
	contacts map[contactKey]chat.Contact
	invites  map[string]chat.GroupInviteLink
}

type contactKey struct{ host, chat string }

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		chats:    map[string]*chat.Chat{},
		messages: map[string]chat.Message{},
		contacts: map[contactKey]chat.Contact{},
		invites:  map[string]chat.GroupInviteLink{},
	}
}

// SetClock replaces the time source used to judge silence expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

var (
	_ repository.ChatRepository    = (*MemoryStore)(nil)
	_ repository.MessageRepository = (*MemoryStore)(nil)
	_ repository.ContactRepository = (*MemoryStore)(nil)
)

func cloneChat(c *chat.Chat) *chat.Chat {
	out := *c
	if c.Private != nil {
		p := *c.Private
		out.Private = &p
	}
	if c.Group != nil {
		g := *c.Group
		g.Members = make([]chat.GroupMember, len(c.Group.Members))
		for i, m := range c.Group.Members {
			if m.SilentUntil != nil {
				t := *m.SilentUntil
				m.SilentUntil = &t
			}
			g.Members[i] = m
		}
		g.Announcements = append([]string(nil), c.Group.Announcements...)
		out.Group = &g
	}
	return &out
}

func cloneMessage(m chat.Message) chat.Message {
	m.MentionedUserIDs = append([]string(nil), m.MentionedUserIDs...)
	return m
}

func (s *MemoryStore) CreateChat(_ context.Context, c chat.Chat) error {
	if _, err := c.Variant(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[c.ID]; ok {
		return fmt.Errorf("chat %s already exists", c.ID)
	}
	if c.Private != nil {
		if existing := s.findPrivateLocked(c.Private.InitiatorID, c.Private.ReceiverID); existing != nil {
			return fmt.Errorf("private chat between %s and %s already exists", c.Private.InitiatorID, c.Private.ReceiverID)
		}
	}
	s.chats[c.ID] = cloneChat(&c)
	return nil
}

func (s *MemoryStore) FindChat(_ context.Context, chatID string) (*chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, chat.ErrNotFound)
	}
	return cloneChat(c), nil
}

func (s *MemoryStore) findPrivateLocked(a, b string) *chat.Chat {
	for _, c := range s.chats {
		if c.Private == nil {
			continue
		}
		p := c.Private
		if (p.InitiatorID == a && p.ReceiverID == b) || (p.InitiatorID == b && p.ReceiverID == a) {
			return c
		}
	}
	return nil
}

func (s *MemoryStore) FindPrivateChat(_ context.Context, userA, userB string) (*chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findPrivateLocked(userA, userB)
	if c == nil {
		return nil, fmt.Errorf("private chat %s/%s: %w", userA, userB, chat.ErrNotFound)
	}
	return cloneChat(c), nil
}

// UpdateGroup holds the store lock for the whole mutation, serializing
// concurrent moderation the way the row lock does in postgres.
func (s *MemoryStore) UpdateGroup(_ context.Context, chatID string, fn repository.GroupMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return fmt.Errorf("chat %s: %w", chatID, chat.ErrNotFound)
	}
	work := cloneChat(c)
	save, err := fn(work)
	if err != nil || !save {
		return err
	}
	if !work.IsGroup() {
		return fmt.Errorf("%w: chat %s is not a group", chat.ErrMalformedChat, chatID)
	}
	s.chats[chatID] = cloneChat(work)
	return nil
}

func (s *MemoryStore) ClearMemberSilence(_ context.Context, chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok || c.Group == nil {
		return nil
	}
	if m := c.Group.Member(userID); m != nil {
		m.ClearExpiredSilence(s.now())
	}
	return nil
}

func (s *MemoryStore) AppendAnnouncement(_ context.Context, chatID, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok && c.Group != nil {
		c.Group.AddAnnouncement(traceID)
	}
	return nil
}

func (s *MemoryStore) RemoveAnnouncement(_ context.Context, chatID, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok && c.Group != nil {
		c.Group.RemoveAnnouncement(traceID)
	}
	return nil
}

func (s *MemoryStore) SetPrivateInformal(_ context.Context, chatID string, informal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok || c.Private == nil {
		return fmt.Errorf("private chat %s: %w", chatID, chat.ErrNotFound)
	}
	c.Private.IsInformal = informal
	return nil
}

func (s *MemoryStore) SaveInvite(_ context.Context, l chat.GroupInviteLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[l.Code]; ok {
		return fmt.Errorf("invite %s already exists", l.Code)
	}
	s.invites[l.Code] = l
	return nil
}

func (s *MemoryStore) FindInvite(_ context.Context, code string) (*chat.GroupInviteLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.invites[code]
	if !ok {
		return nil, fmt.Errorf("invite %s: %w", code, chat.ErrNotFound)
	}
	return &l, nil
}

func (s *MemoryStore) MarkInviteUsed(_ context.Context, code, usedBy string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.invites[code]
	if !ok || l.IsUsed {
		return false, nil
	}
	if usedBy == "" {
		l.Revoke(at)
	} else {
		l.MarkUsed(usedBy, at)
	}
	s.invites[code] = l
	return true, nil
}

// ConsumeInvite holds the store lock across fn like UpdateGroup.
func (s *MemoryStore) ConsumeInvite(_ context.Context, code, userID string, at time.Time, fn repository.GroupMutation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.invites[code]
	if !ok {
		return false, fmt.Errorf("invite %s: %w", code, chat.ErrNotFound)
	}
	c, ok := s.chats[l.GroupID]
	if !ok {
		return false, fmt.Errorf("chat %s: %w", l.GroupID, chat.ErrNotFound)
	}
	work := cloneChat(c)
	save, err := fn(work)
	if err != nil || !save {
		return false, err
	}
	if l.IsUsed {
		return false, nil
	}
	if !work.IsGroup() {
		return false, fmt.Errorf("%w: chat %s is not a group", chat.ErrMalformedChat, l.GroupID)
	}
	l.MarkUsed(userID, at)
	s.invites[code] = l
	s.chats[l.GroupID] = cloneChat(work)
	return true, nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, m chat.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.TraceID]; ok {
		return false, nil
	}
	s.messages[m.TraceID] = cloneMessage(m)
	return true, nil
}

func (s *MemoryStore) FindMessage(_ context.Context, traceID string) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[traceID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", traceID, chat.ErrNotFound)
	}
	m = cloneMessage(m)
	return &m, nil
}

func (s *MemoryStore) ListMessagesBefore(_ context.Context, chatID string, before time.Time, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Message
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		if !before.IsZero() && !m.SentAt.Before(before) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].TraceID > out[j].TraceID
		}
		return out[i].SentAt.After(out[j].SentAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListLatestMessages(ctx context.Context, chatID string, limit int) ([]chat.Message, error) {
	return s.ListMessagesBefore(ctx, chatID, time.Time{}, limit)
}

func (s *MemoryStore) MarkMessageCanceled(_ context.Context, traceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[traceID]
	if !ok || m.IsCanceled {
		return false, nil
	}
	m.IsCanceled = true
	s.messages[traceID] = m
	return true, nil
}

func (s *MemoryStore) SetMessageAnnouncement(_ context.Context, traceID string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[traceID]; ok {
		m.IsAnnouncement = on
		s.messages[traceID] = m
	}
	return nil
}

// DeleteMessage removes a row directly. It exists for tests that simulate
// out-of-band store changes.
func (s *MemoryStore) DeleteMessage(traceID string) {
	s.mu.Lock()
	delete(s.messages, traceID)
	s.mu.Unlock()
}

// MessageCount is the number of stored messages in chatID.
func (s *MemoryStore) MessageCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ChatID == chatID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) CreateContacts(_ context.Context, contacts ...chat.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contacts {
		k := contactKey{c.HostUserID, c.ChatID}
		if _, ok := s.contacts[k]; !ok {
			s.contacts[k] = c
		}
	}
	return nil
}

func (s *MemoryStore) FindContact(_ context.Context, hostUserID, chatID string) (*chat.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactKey{hostUserID, chatID}]
	if !ok {
		return nil, fmt.Errorf("contact %s/%s: %w", hostUserID, chatID, chat.ErrNotFound)
	}
	return &c, nil
}

func (s *MemoryStore) ListContactsByChat(_ context.Context, chatID string) ([]chat.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Contact
	for k, c := range s.contacts {
		if k.chat == chatID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HostUserID < out[j].HostUserID })
	return out, nil
}

func (s *MemoryStore) ListContactsByUser(_ context.Context, hostUserID string) ([]chat.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chat.Contact
	for k, c := range s.contacts {
		if k.host == hostUserID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.After(b.LastUsed)
		}
		return a.ChatID < b.ChatID
	})
	return out, nil
}

func (s *MemoryStore) IncrementUnread(_ context.Context, hostUserID, chatID string, vital bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := contactKey{hostUserID, chatID}
	c, ok := s.contacts[k]
	if !ok {
		return nil
	}
	c.LastUnreadCount++
	c.HasVitalUnread = c.HasVitalUnread || vital
	if at.After(c.LastUsed) {
		c.LastUsed = at
	}
	s.contacts[k] = c
	return nil
}

func (s *MemoryStore) modifyContact(hostUserID, chatID string, fn func(c *chat.Contact)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := contactKey{hostUserID, chatID}
	c, ok := s.contacts[k]
	if !ok {
		return fmt.Errorf("contact %s/%s: %w", hostUserID, chatID, chat.ErrNotFound)
	}
	fn(&c)
	s.contacts[k] = c
	return nil
}

func (s *MemoryStore) ResetUnread(_ context.Context, hostUserID, chatID string) error {
	return s.modifyContact(hostUserID, chatID, func(c *chat.Contact) {
		c.LastUnreadCount = 0
		c.HasVitalUnread = false
	})
}

func (s *MemoryStore) SetBlocked(_ context.Context, hostUserID, chatID string, blocked bool) error {
	return s.modifyContact(hostUserID, chatID, func(c *chat.Contact) { c.IsBlocked = blocked })
}

func (s *MemoryStore) SetPinned(_ context.Context, hostUserID, chatID string, pinned bool) error {
	return s.modifyContact(hostUserID, chatID, func(c *chat.Contact) { c.IsPinned = pinned })
}

func (s *MemoryStore) DeleteContact(_ context.Context, hostUserID, chatID string) error {
	s.mu.Lock()
	delete(s.contacts, contactKey{hostUserID, chatID})
	s.mu.Unlock()
	return nil
}
