package chat

import (
	"time"
)

// SendCheck carries everything the send decision depends on, resolved up
// front so the decision itself stays pure.
type SendCheck struct {
	SenderID string
	Type     MessageType
	Now      time.Time

	// SenderHasContact: the sender holds a Contact row for the chat.
	SenderHasContact bool
	// ReceiverBlockedSender: the receiver's Contact for this chat is blocked.
	ReceiverBlockedSender bool
	// AreFriends: sender and receiver have an established friendship.
	AreFriends bool
	// ReceiverAllowsStrangers: the receiver's privacy setting admits non-friends.
	ReceiverAllowsStrangers bool

	// ViaGroupID names the group a private message is sent under ("" = none).
	// ViaGroup is its resolved chat, nil when it does not exist.
	ViaGroupID string
	ViaGroup   *Chat
}

// Verdict is the decision plus the side effect the caller must persist.
type Verdict struct {
	Decision Decision
	// ClearedSilenceOf is the user whose expired silence was lifted ("" = none).
	ClearedSilenceOf string
}

// Validate decides whether a message may be sent into c. It is pure apart
// from lazily clearing an expired member silence on c.
func Validate(c *Chat, in SendCheck) Verdict {
	if c == nil {
		return Verdict{Decision: Reject(DecisionChatNotFound, "chat not found")}
	}
	v, err := c.Variant()
	if err != nil {
		return Verdict{Decision: Internal()}
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	return v.ValidateSend(c, in)
}

func (p *PrivateChat) ValidateSend(c *Chat, in SendCheck) Verdict {
	receiver := p.Other(in.SenderID)
	if receiver == "" || !in.SenderHasContact {
		return Verdict{Decision: Reject(DecisionUnauthorized, "you are not a participant of this chat")}
	}
	if in.ReceiverBlockedSender {
		return Verdict{Decision: Reject(DecisionPrivateChatBlocked, "this user does not accept your messages")}
	}
	if c.Status == ChatStatusUnreachable {
		return Verdict{Decision: Reject(DecisionForbidden, "this chat is no longer reachable")}
	}
	if in.Type == MessageTypeAnnouncement {
		return Verdict{Decision: Reject(DecisionForbidden, "announcements can only be posted in groups")}
	}

	if in.ViaGroupID != "" {
		return Verdict{Decision: p.validateViaGroup(in, receiver)}
	}

	if p.IsInformal && !in.AreFriends {
		if !in.ReceiverAllowsStrangers {
			return Verdict{Decision: Reject(DecisionForbidden, "this user only accepts messages from friends")}
		}
		if in.Type != MessageTypeRequesting {
			return Verdict{Decision: Reject(DecisionUnauthorized, "only friend requests can be sent before the friendship is confirmed")}
		}
	}
	return Verdict{Decision: Allow()}
}

// validateViaGroup lets group members talk privately without being friends
// when the shared group allows it.
func (p *PrivateChat) validateViaGroup(in SendCheck, receiver string) Decision {
	g := in.ViaGroup
	if g == nil || !g.IsGroup() || g.ID != in.ViaGroupID {
		return Reject(DecisionViaGroupChatValidationFailed, "the group this chat was started from is unavailable")
	}
	if g.Status == ChatStatusGroupDisabled {
		return Reject(DecisionGroupChatDisabled, "the group this chat was started from is disabled")
	}
	if !g.Group.Settings.IsPrivateChatAllowed {
		return Reject(DecisionPrivateChatNotAllowed, "the group does not allow private chats between members")
	}
	if g.Group.Member(in.SenderID) == nil || g.Group.Member(receiver) == nil {
		return Reject(DecisionNotInGroup, "both users must be members of the group")
	}
	return Allow()
}

func (g *GroupChat) ValidateSend(c *Chat, in SendCheck) Verdict {
	if c.Status == ChatStatusGroupDisabled {
		return Verdict{Decision: Reject(DecisionGroupChatDisabled, "this group is disabled")}
	}
	if c.Status == ChatStatusUnreachable {
		return Verdict{Decision: Reject(DecisionForbidden, "this group is no longer reachable")}
	}
	m := g.Member(in.SenderID)
	if m == nil {
		return Verdict{Decision: Reject(DecisionNotInGroup, "you are not a member of this group")}
	}
	if in.Type == MessageTypeRequesting {
		return Verdict{Decision: Reject(DecisionForbidden, "requests can only be sent in private chats")}
	}

	var verdict Verdict
	if m.IsSilent {
		if m.ClearExpiredSilence(in.Now) {
			verdict.ClearedSilenceOf = m.UserID
		} else if m.SilentUntil != nil {
			verdict.Decision = Rejectf(DecisionUserMuted, "you are muted until %s", m.SilentUntil.UTC().Format(time.RFC3339))
			return verdict
		} else {
			verdict.Decision = Reject(DecisionUserMuted, "you are muted in this group")
			return verdict
		}
	}
	if g.Settings.IsAllSilent && !m.Role.CanManage() {
		verdict.Decision = Reject(DecisionUserMuted, "the group is muted for members")
		return verdict
	}
	if in.Type == MessageTypeAnnouncement && !m.Role.CanManage() {
		verdict.Decision = Reject(DecisionForbidden, "only owners and admins can post announcements")
		return verdict
	}
	verdict.Decision = Allow()
	return verdict
}
