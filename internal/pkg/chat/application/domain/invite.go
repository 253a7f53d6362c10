package chat

import "time"

// DefaultInviteTTL is how long a link issued by InviteMember stays valid.
const DefaultInviteTTL = 48 * time.Hour

// GroupInviteLink is a one-shot invitation into a group. An empty
// TargetUserID makes it open to anyone the group policy admits.
type GroupInviteLink struct {
	Code         string     `db:"code"`
	GroupID      string     `db:"group_id"`
	CreatedBy    string     `db:"created_by"`
	TargetUserID string     `db:"target_user_id"`
	CreatedAt    time.Time  `db:"created_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	IsUsed       bool       `db:"is_used"`
	UsedBy       string     `db:"used_by"`
	UsedAt       *time.Time `db:"used_at"`
}

// IsOpen reports whether the link is not bound to a user.
func (l GroupInviteLink) IsOpen() bool { return l.TargetUserID == "" }

// CheckUsable validates the link's own state for userID. It does not look at
// the group or the inviter; callers re-check those at consumption time.
func (l GroupInviteLink) CheckUsable(userID string, now time.Time) Outcome {
	switch {
	case l.IsUsed:
		return Deny("invite link has already been used or revoked")
	case !now.Before(l.ExpiresAt):
		return Deny("invite link has expired")
	case !l.IsOpen() && l.TargetUserID != userID:
		return Deny("invite link was issued to another user")
	}
	return Permit()
}

// MarkUsed consumes the link for userID.
func (l *GroupInviteLink) MarkUsed(userID string, now time.Time) {
	l.IsUsed = true
	l.UsedBy = userID
	t := now
	l.UsedAt = &t
}

// Revoke makes the link permanently unusable.
func (l *GroupInviteLink) Revoke(now time.Time) {
	if l.IsUsed {
		return
	}
	l.IsUsed = true
	t := now
	l.UsedAt = &t
}
