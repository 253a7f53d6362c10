package chat

import (
	"fmt"
	"time"
)

// Outcome is the structured result of a moderation command. A failed outcome
// carries a human readable reason; a successful one may carry the text of the
// Event message to emit and the users that event mentions.
type Outcome struct {
	OK       bool
	Reason   string
	Event    string
	Mentions []string
}

// Permit is a successful outcome with no event.
func Permit() Outcome { return Outcome{OK: true} }

// Deny is a failed outcome.
func Deny(reason string) Outcome { return Outcome{Reason: reason} }

func emit(event string, mentions ...string) Outcome {
	return Outcome{OK: true, Event: event, Mentions: dedupe(mentions)}
}

// ModerationCommand is a mutation of group moderation state. The set is closed.
type ModerationCommand interface {
	apply(g *GroupChat, now time.Time) Outcome
}

// Moderate applies cmd to c. Disabled and unreachable groups reject every command.
func Moderate(c *Chat, cmd ModerationCommand, now time.Time) Outcome {
	if c == nil {
		return Deny("chat not found")
	}
	if cmd == nil {
		return Deny("no moderation command given")
	}
	v, err := c.Variant()
	if err != nil {
		return Deny("chat state is malformed")
	}
	if c.Status != ChatStatusNormal {
		return Deny("this group is disabled")
	}
	return v.ApplyModeration(cmd, now)
}

func (g *GroupChat) ApplyModeration(cmd ModerationCommand, now time.Time) Outcome {
	return cmd.apply(g, now)
}

// operatorAndTarget resolves both members or explains which is missing.
func (g *GroupChat) operatorAndTarget(operatorID, targetID string) (*GroupMember, *GroupMember, Outcome) {
	op := g.Member(operatorID)
	if op == nil {
		return nil, nil, Deny("you are not a member of this group")
	}
	target := g.Member(targetID)
	if target == nil {
		return nil, nil, Deny("target user is not a member of this group")
	}
	return op, target, Permit()
}

// SetAdmin promotes or demotes a member. Owner only.
type SetAdmin struct {
	OperatorID string
	TargetID   string
	IsAdmin    bool
}

func (c SetAdmin) apply(g *GroupChat, _ time.Time) Outcome {
	op, target, res := g.operatorAndTarget(c.OperatorID, c.TargetID)
	if !res.OK {
		return res
	}
	if op.Role != RoleOwner {
		return Deny("only the owner can change admins")
	}
	if target.Role == RoleOwner {
		return Deny("the owner's role cannot be changed")
	}
	want := RoleMember
	if c.IsAdmin {
		want = RoleAdmin
	}
	if target.Role == want {
		return Permit()
	}
	target.Role = want
	if c.IsAdmin {
		// admins cannot be silenced individually
		target.IsSilent = false
		target.SilentUntil = nil
		return emit(fmt.Sprintf("%s made %s an admin", op.UserID, target.UserID), target.UserID)
	}
	return emit(fmt.Sprintf("%s removed %s from admins", op.UserID, target.UserID), target.UserID)
}

// SetMemberSilent mutes or unmutes a plain member. A nil Duration mutes
// indefinitely.
type SetMemberSilent struct {
	OperatorID string
	TargetID   string
	IsSilent   bool
	Duration   *time.Duration
}

func (c SetMemberSilent) apply(g *GroupChat, now time.Time) Outcome {
	op, target, res := g.operatorAndTarget(c.OperatorID, c.TargetID)
	if !res.OK {
		return res
	}
	if !op.Role.CanManage() {
		return Deny("only owners and admins can mute members")
	}
	if target.Role != RoleMember {
		return Deny("owners and admins cannot be muted")
	}
	if !c.IsSilent {
		if !target.IsSilent {
			return Permit()
		}
		target.IsSilent = false
		target.SilentUntil = nil
		return emit(fmt.Sprintf("%s unmuted %s", op.UserID, target.UserID), target.UserID)
	}
	target.IsSilent = true
	target.SilentUntil = nil
	if c.Duration != nil {
		if *c.Duration <= 0 {
			return Deny("mute duration must be positive")
		}
		until := now.Add(*c.Duration).UTC()
		target.SilentUntil = &until
		return emit(fmt.Sprintf("%s muted %s until %s", op.UserID, target.UserID, until.Format(time.RFC3339)), target.UserID)
	}
	return emit(fmt.Sprintf("%s muted %s", op.UserID, target.UserID), target.UserID)
}

// ToggleAllSilent mutes or unmutes every plain member at once.
type ToggleAllSilent struct {
	OperatorID string
	IsSilent   bool
	Reason     string
}

func (c ToggleAllSilent) apply(g *GroupChat, _ time.Time) Outcome {
	op := g.Member(c.OperatorID)
	if op == nil {
		return Deny("you are not a member of this group")
	}
	if !op.Role.CanManage() {
		return Deny("only owners and admins can mute the group")
	}
	if g.Settings.IsAllSilent == c.IsSilent {
		return Permit()
	}
	g.Settings.IsAllSilent = c.IsSilent
	event := fmt.Sprintf("%s unmuted the group", op.UserID)
	if c.IsSilent {
		event = fmt.Sprintf("%s muted the group", op.UserID)
	}
	if c.Reason != "" {
		event += ": " + c.Reason
	}
	return emit(event)
}

// SetMemberTitle gives a member a display title. Owner only.
type SetMemberTitle struct {
	OperatorID string
	TargetID   string
	Title      string
}

func (c SetMemberTitle) apply(g *GroupChat, _ time.Time) Outcome {
	op, target, res := g.operatorAndTarget(c.OperatorID, c.TargetID)
	if !res.OK {
		return res
	}
	if op.Role != RoleOwner {
		return Deny("only the owner can give titles")
	}
	if target.GivenTitle == c.Title {
		return Permit()
	}
	target.GivenTitle = c.Title
	if c.Title == "" {
		return emit(fmt.Sprintf("%s cleared the title of %s", op.UserID, target.UserID), target.UserID)
	}
	return emit(fmt.Sprintf("%s gave %s the title %q", op.UserID, target.UserID, c.Title), target.UserID)
}

// SetMemberNickname renames a member inside the group. Nicknames are not
// announced.
type SetMemberNickname struct {
	OperatorID string
	TargetID   string
	Nickname   string
}

func (c SetMemberNickname) apply(g *GroupChat, _ time.Time) Outcome {
	op, target, res := g.operatorAndTarget(c.OperatorID, c.TargetID)
	if !res.OK {
		return res
	}
	if !op.CanRename(*target) {
		return Deny("only admins can change other members' nicknames")
	}
	target.Nickname = c.Nickname
	return Permit()
}

// LeaveGroup removes TargetID, or the operator when TargetID is empty.
// Voluntary leave and removal share one authorization rule.
type LeaveGroup struct {
	OperatorID string
	TargetID   string
}

func (c LeaveGroup) apply(g *GroupChat, _ time.Time) Outcome {
	targetID := c.TargetID
	if targetID == "" {
		targetID = c.OperatorID
	}
	op, target, res := g.operatorAndTarget(c.OperatorID, targetID)
	if !res.OK {
		return res
	}
	if target.Role == RoleOwner {
		return Deny("the owner cannot leave or be removed from the group")
	}
	if !op.CanOperateOn(*target) {
		return Deny("you can only remove members of your role or below")
	}
	removed := *target
	g.removeMember(removed.UserID)
	if removed.UserID == op.UserID {
		return emit(fmt.Sprintf("%s left the group", removed.UserID), removed.InvitedBy)
	}
	return emit(fmt.Sprintf("%s removed %s from the group", op.UserID, removed.UserID), removed.UserID, removed.InvitedBy)
}

// AddMember admits UserID through an invitation issued by InvitedBy. The
// inviter's membership and rank are checked when the member is added, not
// when the invitation was issued.
type AddMember struct {
	UserID    string
	InvitedBy string
}

func (c AddMember) apply(g *GroupChat, now time.Time) Outcome {
	if c.UserID == "" {
		return Deny("no user to add")
	}
	if g.Member(c.UserID) != nil {
		return Deny("user is already a member of this group")
	}
	inviter := g.Member(c.InvitedBy)
	if inviter == nil {
		return Deny("the inviter is no longer a member of this group")
	}
	if !inviter.Role.CanManage() {
		return Deny("the inviter can no longer invite members")
	}
	g.Members = append(g.Members, GroupMember{
		UserID:    c.UserID,
		Role:      RoleMember,
		InvitedBy: inviter.UserID,
		JoinedAt:  now,
	})
	return emit(fmt.Sprintf("%s joined the group, invited by %s", c.UserID, inviter.UserID), inviter.UserID)
}

// RemoveAnnouncement unpins an announcement. Owners and admins only.
type RemoveAnnouncement struct {
	OperatorID string
	TraceID    string
}

func (c RemoveAnnouncement) apply(g *GroupChat, _ time.Time) Outcome {
	op := g.Member(c.OperatorID)
	if op == nil {
		return Deny("you are not a member of this group")
	}
	if !op.Role.CanManage() {
		return Deny("only owners and admins can remove announcements")
	}
	if !g.RemoveAnnouncement(c.TraceID) {
		return Deny("announcement not found")
	}
	return emit(fmt.Sprintf("%s removed an announcement", op.UserID))
}

// CanInvite checks whether operatorID may issue an invitation for targetID.
// An empty targetID asks about an open link. Friendship is checked by the caller.
func (g *GroupChat) CanInvite(operatorID, targetID string) Outcome {
	op := g.Member(operatorID)
	if op == nil {
		return Deny("you are not a member of this group")
	}
	if !op.Role.CanManage() {
		return Deny("only owners and admins can invite members")
	}
	if targetID != "" && g.Member(targetID) != nil {
		return Deny("user is already a member of this group")
	}
	return Permit()
}

// IsManager reports whether userID is a member holding manage rights.
func (g *GroupChat) IsManager(userID string) bool {
	m := g.Member(userID)
	return m != nil && m.Role.CanManage()
}
