package chat

import (
	"fmt"
	"time"
)

// ChatKind tags the Chat variant.
type ChatKind int16

const (
	ChatKindPrivate ChatKind = 0
	ChatKindGroup   ChatKind = 1
)

// ChatStatus is the lifecycle state of a chat.
// 0=normal, 1=group disabled, 2=unreachable
type ChatStatus int16

const (
	ChatStatusNormal        ChatStatus = 0
	ChatStatusGroupDisabled ChatStatus = 1
	ChatStatusUnreachable   ChatStatus = 2
)

// Chat is a conversation. Exactly one of Private/Group is set, matching Kind.
type Chat struct {
	ID        string     `db:"id"`
	Kind      ChatKind   `db:"kind"`
	Status    ChatStatus `db:"status"`
	CreatedBy string     `db:"created_by"`
	CreatedAt time.Time  `db:"created_at"`

	Private *PrivateChat
	Group   *GroupChat
}

// PrivateChat is a two-party conversation.
// IsInformal marks a chat opened without a confirmed friendship.
type PrivateChat struct {
	InitiatorID string `db:"initiator_id"`
	ReceiverID  string `db:"receiver_id"`
	IsInformal  bool   `db:"is_informal"`
}

// GroupSettings are the owner/admin editable group options.
type GroupSettings struct {
	DisplayName          string `db:"display_name"`
	AvatarURL            string `db:"avatar_url"`
	IsAllSilent          bool   `db:"is_all_silent"`
	IsInviteOnly         bool   `db:"is_invite_only"`
	IsPrivateChatAllowed bool   `db:"is_private_chat_allowed"`
}

// GroupChat is a many-party conversation with moderation state.
type GroupChat struct {
	OwnerID       string
	Settings      GroupSettings
	Members       []GroupMember
	Announcements []string // message trace ids, oldest first
}

// Variant is the per-kind behavior of a chat.
type Variant interface {
	// ValidateSend decides whether in.SenderID may post a message of in.Type.
	// It may mutate transient member state (expired silence); see Verdict.
	ValidateSend(c *Chat, in SendCheck) Verdict
	// ApplyModeration runs a moderation command against the chat.
	ApplyModeration(cmd ModerationCommand, now time.Time) Outcome
	// Participants lists the user ids taking part in the chat.
	Participants() []string
}

// Variant dispatches on Kind.
func (c *Chat) Variant() (Variant, error) {
	switch c.Kind {
	case ChatKindPrivate:
		if c.Private == nil {
			return nil, fmt.Errorf("%w: private chat %s has no private state", ErrMalformedChat, c.ID)
		}
		return c.Private, nil
	case ChatKindGroup:
		if c.Group == nil {
			return nil, fmt.Errorf("%w: group chat %s has no group state", ErrMalformedChat, c.ID)
		}
		return c.Group, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedChat, c.Kind)
	}
}

// IsGroup reports whether c is a group chat.
func (c *Chat) IsGroup() bool { return c != nil && c.Kind == ChatKindGroup && c.Group != nil }

// Participants returns the participant ids, or nil for a malformed chat.
func (c *Chat) Participants() []string {
	v, err := c.Variant()
	if err != nil {
		return nil
	}
	return v.Participants()
}

// HasParticipant tells whether userID is part of this chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, id := range c.Participants() {
		if id == userID {
			return true
		}
	}
	return false
}

// NewPrivateChat builds a private chat between initiator and receiver.
func NewPrivateChat(id, initiatorID, receiverID string, informal bool, now time.Time) Chat {
	return Chat{
		ID:        id,
		Kind:      ChatKindPrivate,
		Status:    ChatStatusNormal,
		CreatedBy: initiatorID,
		CreatedAt: now,
		Private: &PrivateChat{
			InitiatorID: initiatorID,
			ReceiverID:  receiverID,
			IsInformal:  informal,
		},
	}
}

// NewGroupChat builds a group chat owned by ownerID with the given extra members.
func NewGroupChat(id, ownerID string, settings GroupSettings, memberIDs []string, now time.Time) Chat {
	g := &GroupChat{
		OwnerID:  ownerID,
		Settings: settings,
		Members:  []GroupMember{{UserID: ownerID, Role: RoleOwner, JoinedAt: now}},
	}
	for _, uid := range memberIDs {
		if uid == "" || g.Member(uid) != nil {
			continue
		}
		g.Members = append(g.Members, GroupMember{UserID: uid, Role: RoleMember, InvitedBy: ownerID, JoinedAt: now})
	}
	return Chat{
		ID:        id,
		Kind:      ChatKindGroup,
		Status:    ChatStatusNormal,
		CreatedBy: ownerID,
		CreatedAt: now,
		Group:     g,
	}
}

// Other returns the counterpart of userID, or "" when userID is not a party.
func (p *PrivateChat) Other(userID string) string {
	switch userID {
	case p.InitiatorID:
		return p.ReceiverID
	case p.ReceiverID:
		return p.InitiatorID
	}
	return ""
}

func (p *PrivateChat) Participants() []string {
	return []string{p.InitiatorID, p.ReceiverID}
}

func (p *PrivateChat) ApplyModeration(ModerationCommand, time.Time) Outcome {
	return Deny("moderation is only available in group chats")
}

// Member returns a pointer into Members for userID, or nil.
func (g *GroupChat) Member(userID string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

func (g *GroupChat) Participants() []string {
	ids := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (g *GroupChat) removeMember(userID string) {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return
		}
	}
}

// HasAnnouncement reports whether traceID is pinned as an announcement.
func (g *GroupChat) HasAnnouncement(traceID string) bool {
	for _, id := range g.Announcements {
		if id == traceID {
			return true
		}
	}
	return false
}

// AddAnnouncement appends traceID once.
func (g *GroupChat) AddAnnouncement(traceID string) bool {
	if g.HasAnnouncement(traceID) {
		return false
	}
	g.Announcements = append(g.Announcements, traceID)
	return true
}

// RemoveAnnouncement drops traceID and reports whether it was present.
func (g *GroupChat) RemoveAnnouncement(traceID string) bool {
	for i, id := range g.Announcements {
		if id == traceID {
			g.Announcements = append(g.Announcements[:i], g.Announcements[i+1:]...)
			return true
		}
	}
	return false
}
