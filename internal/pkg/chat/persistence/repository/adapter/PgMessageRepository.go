package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "zenchatty/internal/pkg/chat/application/domain"
	repository "zenchatty/internal/pkg/chat/persistence/repository/port"
)

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

var _ repository.MessageRepository = (*PgMessageRepository)(nil)

const selectMessage = `
	SELECT trace_id, conversation_id, sender_id, content, msg_type, sent_at, server_caught_at,
	       is_mentioning_all, mentioned_user_ids, is_announcement, is_canceled
	FROM chat.message`

func (r *PgMessageRepository) SaveMessage(ctx context.Context, m chat.Message) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errNilPool
	}
	mentions := m.MentionedUserIDs
	if mentions == nil {
		mentions = []string{}
	}
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO chat.message (
			trace_id, conversation_id, sender_id, content, msg_type, sent_at, server_caught_at,
			is_mentioning_all, mentioned_user_ids, is_announcement, is_canceled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (trace_id) DO NOTHING
	`, m.TraceID, m.ChatID, m.SenderID, m.Content, m.Type, m.SentAt, m.ServerCaughtAt,
		m.IsMentioningAll, mentions, m.IsAnnouncement, m.IsCanceled)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func scanMessage(row pgx.Row) (chat.Message, error) {
	var m chat.Message
	err := row.Scan(&m.TraceID, &m.ChatID, &m.SenderID, &m.Content, &m.Type, &m.SentAt, &m.ServerCaughtAt,
		&m.IsMentioningAll, &m.MentionedUserIDs, &m.IsAnnouncement, &m.IsCanceled)
	return m, err
}

func (r *PgMessageRepository) FindMessage(ctx context.Context, traceID string) (*chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	m, err := scanMessage(r.pool.QueryRow(ctx, selectMessage+` WHERE trace_id = $1`, traceID))
	if err != nil {
		return nil, notFound(err, "message", traceID)
	}
	return &m, nil
}

func (r *PgMessageRepository) list(ctx context.Context, sql string, args ...any) ([]chat.Message, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (r *PgMessageRepository) ListMessagesBefore(ctx context.Context, chatID string, before time.Time, limit int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		return nil, nil
	}
	if before.IsZero() {
		return r.ListLatestMessages(ctx, chatID, limit)
	}
	return r.list(ctx, selectMessage+`
		WHERE conversation_id = $1 AND sent_at < $2
		ORDER BY sent_at DESC, trace_id DESC
		LIMIT $3
	`, chatID, before, limit)
}

func (r *PgMessageRepository) ListLatestMessages(ctx context.Context, chatID string, limit int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		return nil, nil
	}
	return r.list(ctx, selectMessage+`
		WHERE conversation_id = $1
		ORDER BY sent_at DESC, trace_id DESC
		LIMIT $2
	`, chatID, limit)
}

func (r *PgMessageRepository) MarkMessageCanceled(ctx context.Context, traceID string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errNilPool
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.message SET is_canceled = true WHERE trace_id = $1 AND NOT is_canceled
	`, traceID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *PgMessageRepository) SetMessageAnnouncement(ctx context.Context, traceID string, on bool) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	_, err := r.pool.Exec(ctx, `UPDATE chat.message SET is_announcement = $2 WHERE trace_id = $1`, traceID, on)
	return err
}
