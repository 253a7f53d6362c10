package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

var errNilPool = errors.New("postgres repository: nil pool")

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, chat.ErrNotFound)
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *PgChatRepository) CreateChat(ctx context.Context, c chat.Chat) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	if _, err := c.Variant(); err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	switch c.Kind {
	case chat.ChatKindPrivate:
		_, err = tx.Exec(ctx, `
			INSERT INTO chat.conversation (id, kind, status, created_by, created_at, initiator_id, receiver_id, is_informal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, c.ID, c.Kind, c.Status, c.CreatedBy, c.CreatedAt, c.Private.InitiatorID, c.Private.ReceiverID, c.Private.IsInformal)
	case chat.ChatKindGroup:
		g := c.Group
		_, err = tx.Exec(ctx, `
			INSERT INTO chat.conversation (id, kind, status, created_by, created_at, owner_id,
				display_name, avatar_url, is_all_silent, is_invite_only, is_private_chat_allowed, announcements)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, c.ID, c.Kind, c.Status, c.CreatedBy, c.CreatedAt, g.OwnerID,
			g.Settings.DisplayName, g.Settings.AvatarURL, g.Settings.IsAllSilent, g.Settings.IsInviteOnly,
			g.Settings.IsPrivateChatAllowed, announcementsOrEmpty(g.Announcements))
		if err == nil {
			err = writeMembers(ctx, tx, c.ID, g.Members)
		}
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func announcementsOrEmpty(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

// writeMembers makes the member rows of chatID match members exactly.
func writeMembers(ctx context.Context, q querier, chatID string, members []chat.GroupMember) error {
	keep := make([]string, 0, len(members))
	for _, m := range members {
		keep = append(keep, m.UserID)
		_, err := q.Exec(ctx, `
			INSERT INTO chat.group_member (conversation_id, user_id, role, nickname, given_title, is_silent, silent_until, invited_by, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (conversation_id, user_id)
			DO UPDATE SET role = EXCLUDED.role,
			              nickname = EXCLUDED.nickname,
			              given_title = EXCLUDED.given_title,
			              is_silent = EXCLUDED.is_silent,
			              silent_until = EXCLUDED.silent_until,
			              invited_by = EXCLUDED.invited_by
		`, chatID, m.UserID, m.Role, m.Nickname, m.GivenTitle, m.IsSilent, m.SilentUntil, nullable(m.InvitedBy), m.JoinedAt)
		if err != nil {
			return err
		}
	}
	_, err := q.Exec(ctx, `
		DELETE FROM chat.group_member
		WHERE conversation_id = $1 AND NOT (user_id = ANY($2))
	`, chatID, keep)
	return err
}

const selectConversation = `
	SELECT id, kind, status, created_by, created_at,
	       initiator_id, receiver_id, is_informal,
	       owner_id, display_name, avatar_url, is_all_silent, is_invite_only, is_private_chat_allowed, announcements
	FROM chat.conversation`

func scanChat(row pgx.Row) (*chat.Chat, error) {
	var (
		c                   chat.Chat
		initiator, receiver *string
		informal            bool
		owner               *string
		settings            chat.GroupSettings
		announcements       []string
	)
	err := row.Scan(&c.ID, &c.Kind, &c.Status, &c.CreatedBy, &c.CreatedAt,
		&initiator, &receiver, &informal,
		&owner, &settings.DisplayName, &settings.AvatarURL, &settings.IsAllSilent, &settings.IsInviteOnly,
		&settings.IsPrivateChatAllowed, &announcements)
	if err != nil {
		return nil, err
	}
	switch c.Kind {
	case chat.ChatKindPrivate:
		c.Private = &chat.PrivateChat{InitiatorID: deref(initiator), ReceiverID: deref(receiver), IsInformal: informal}
	case chat.ChatKindGroup:
		c.Group = &chat.GroupChat{OwnerID: deref(owner), Settings: settings, Announcements: announcements}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", chat.ErrMalformedChat, c.Kind)
	}
	return &c, nil
}

func loadMembers(ctx context.Context, q querier, chatID string) ([]chat.GroupMember, error) {
	rows, err := q.Query(ctx, `
		SELECT user_id, role, nickname, given_title, is_silent, silent_until, invited_by, joined_at
		FROM chat.group_member
		WHERE conversation_id = $1
		ORDER BY joined_at, user_id
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []chat.GroupMember
	for rows.Next() {
		var (
			m         chat.GroupMember
			invitedBy *string
		)
		if err := rows.Scan(&m.UserID, &m.Role, &m.Nickname, &m.GivenTitle, &m.IsSilent, &m.SilentUntil, &invitedBy, &m.JoinedAt); err != nil {
			return nil, err
		}
		m.InvitedBy = deref(invitedBy)
		members = append(members, m)
	}
	return members, rows.Err()
}

func findChat(ctx context.Context, q querier, chatID string, forUpdate bool) (*chat.Chat, error) {
	sql := selectConversation + ` WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	c, err := scanChat(q.QueryRow(ctx, sql, chatID))
	if err != nil {
		return nil, notFound(err, "chat", chatID)
	}
	if c.Group != nil {
		members, err := loadMembers(ctx, q, chatID)
		if err != nil {
			return nil, err
		}
		c.Group.Members = members
	}
	return c, nil
}

func (r *PgChatRepository) FindChat(ctx context.Context, chatID string) (*chat.Chat, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	return findChat(ctx, r.pool, chatID, false)
}

func (r *PgChatRepository) FindPrivateChat(ctx context.Context, userA, userB string) (*chat.Chat, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	c, err := scanChat(r.pool.QueryRow(ctx, selectConversation+`
		WHERE kind = 0
		  AND ((initiator_id = $1 AND receiver_id = $2) OR (initiator_id = $2 AND receiver_id = $1))
	`, userA, userB))
	if err != nil {
		return nil, notFound(err, "private chat", userA+"/"+userB)
	}
	return c, nil
}

func (r *PgChatRepository) UpdateGroup(ctx context.Context, chatID string, fn repository.GroupMutation) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	c, err := findChat(ctx, tx, chatID, true)
	if err != nil {
		return err
	}
	save, err := fn(c)
	if err != nil || !save {
		return err
	}
	if err := saveGroup(ctx, tx, chatID, c); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func saveGroup(ctx context.Context, tx pgx.Tx, chatID string, c *chat.Chat) error {
	if !c.IsGroup() {
		return fmt.Errorf("%w: chat %s is not a group", chat.ErrMalformedChat, chatID)
	}
	g := c.Group
	_, err := tx.Exec(ctx, `
		UPDATE chat.conversation
		SET status = $2, display_name = $3, avatar_url = $4, is_all_silent = $5,
		    is_invite_only = $6, is_private_chat_allowed = $7, announcements = $8
		WHERE id = $1
	`, chatID, c.Status, g.Settings.DisplayName, g.Settings.AvatarURL, g.Settings.IsAllSilent,
		g.Settings.IsInviteOnly, g.Settings.IsPrivateChatAllowed, announcementsOrEmpty(g.Announcements))
	if err != nil {
		return err
	}
	return writeMembers(ctx, tx, chatID, g.Members)
}

func (r *PgChatRepository) ClearMemberSilence(ctx context.Context, chatID, userID string) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	// only an expired silence is cleared; a fresh mute set meanwhile survives
	_, err := r.pool.Exec(ctx, `
		UPDATE chat.group_member
		SET is_silent = false, silent_until = NULL
		WHERE conversation_id = $1 AND user_id = $2 AND silent_until IS NOT NULL AND silent_until <= now()
	`, chatID, userID)
	return err
}

func (r *PgChatRepository) AppendAnnouncement(ctx context.Context, chatID, traceID string) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation
		SET announcements = array_append(announcements, $2)
		WHERE id = $1 AND kind = 1 AND NOT ($2 = ANY(announcements))
	`, chatID, traceID)
	return err
}

func (r *PgChatRepository) RemoveAnnouncement(ctx context.Context, chatID, traceID string) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation
		SET announcements = array_remove(announcements, $2)
		WHERE id = $1
	`, chatID, traceID)
	return err
}

func (r *PgChatRepository) SetPrivateInformal(ctx context.Context, chatID string, informal bool) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation SET is_informal = $2 WHERE id = $1 AND kind = 0
	`, chatID, informal)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("private chat %s: %w", chatID, chat.ErrNotFound)
	}
	return nil
}

func (r *PgChatRepository) SaveInvite(ctx context.Context, l chat.GroupInviteLink) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.invite_link (code, group_id, created_by, target_user_id, created_at, expires_at, is_used, used_by, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, l.Code, l.GroupID, l.CreatedBy, nullable(l.TargetUserID), l.CreatedAt, l.ExpiresAt, l.IsUsed, nullable(l.UsedBy), l.UsedAt)
	return err
}

func (r *PgChatRepository) FindInvite(ctx context.Context, code string) (*chat.GroupInviteLink, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	var (
		l              chat.GroupInviteLink
		target, usedBy *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT code, group_id, created_by, target_user_id, created_at, expires_at, is_used, used_by, used_at
		FROM chat.invite_link
		WHERE code = $1
	`, code).Scan(&l.Code, &l.GroupID, &l.CreatedBy, &target, &l.CreatedAt, &l.ExpiresAt, &l.IsUsed, &usedBy, &l.UsedAt)
	if err != nil {
		return nil, notFound(err, "invite", code)
	}
	l.TargetUserID = deref(target)
	l.UsedBy = deref(usedBy)
	return &l, nil
}

func (r *PgChatRepository) MarkInviteUsed(ctx context.Context, code, usedBy string, at time.Time) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errNilPool
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.invite_link
		SET is_used = true, used_by = $2, used_at = $3
		WHERE code = $1 AND NOT is_used
	`, code, nullable(usedBy), at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PgChatRepository) ConsumeInvite(ctx context.Context, code, userID string, at time.Time, fn repository.GroupMutation) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errNilPool
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var groupID string
	if err := tx.QueryRow(ctx, `SELECT group_id FROM chat.invite_link WHERE code = $1`, code).Scan(&groupID); err != nil {
		return false, notFound(err, "invite", code)
	}
	c, err := findChat(ctx, tx, groupID, true)
	if err != nil {
		return false, err
	}
	save, err := fn(c)
	if err != nil || !save {
		return false, err
	}
	ct, err := tx.Exec(ctx, `
		UPDATE chat.invite_link
		SET is_used = true, used_by = $2, used_at = $3
		WHERE code = $1 AND NOT is_used
	`, code, userID, at)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, nil
	}
	if err := saveGroup(ctx, tx, groupID, c); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
