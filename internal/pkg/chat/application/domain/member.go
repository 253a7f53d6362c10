package chat

import "time"

// MemberRole is ordered: Member < Admin < Owner.
type MemberRole int16

const (
	RoleMember MemberRole = 0
	RoleAdmin  MemberRole = 1
	RoleOwner  MemberRole = 2
)

func (r MemberRole) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleAdmin:
		return "admin"
	case RoleMember:
		return "member"
	}
	return "unknown"
}

// Outranks reports whether r is strictly above other.
func (r MemberRole) Outranks(other MemberRole) bool { return r > other }

// CanManage reports whether r holds manage rights (Admin or Owner).
func (r MemberRole) CanManage() bool { return r >= RoleAdmin }

// GroupMember is one user's membership in a group.
type GroupMember struct {
	UserID      string     `db:"user_id"`
	Role        MemberRole `db:"role"`
	Nickname    string     `db:"nickname"`
	GivenTitle  string     `db:"given_title"`
	IsSilent    bool       `db:"is_silent"`
	SilentUntil *time.Time `db:"silent_until"` // nil with IsSilent = indefinite
	InvitedBy   string     `db:"invited_by"`
	JoinedAt    time.Time  `db:"joined_at"`
}

// AtLeast reports whether r is equal to or above other.
func (r MemberRole) AtLeast(other MemberRole) bool { return r >= other }

// CanOperateOn is the contact-operate rule used for leaving and removal: the
// operator must hold a role equal to or above the target's.
func (m GroupMember) CanOperateOn(target GroupMember) bool {
	return m.UserID == target.UserID || m.Role.AtLeast(target.Role)
}

// CanRename reports whether m may set target's nickname: itself, or any
// target when m is Admin or Owner.
func (m GroupMember) CanRename(target GroupMember) bool {
	return m.UserID == target.UserID || m.Role.CanManage()
}

// MutedAt reports whether the member's individual silence is in effect at now.
func (m GroupMember) MutedAt(now time.Time) bool {
	if !m.IsSilent {
		return false
	}
	return m.SilentUntil == nil || now.Before(*m.SilentUntil)
}

// ClearExpiredSilence lifts a silence whose deadline has passed and reports
// whether anything changed.
func (m *GroupMember) ClearExpiredSilence(now time.Time) bool {
	if !m.IsSilent || m.SilentUntil == nil || now.Before(*m.SilentUntil) {
		return false
	}
	m.IsSilent = false
	m.SilentUntil = nil
	return true
}
