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

type PgContactRepository struct {
	pool *pgxpool.Pool
}

func NewPgContactRepository(pool *pgxpool.Pool) *PgContactRepository {
	return &PgContactRepository{pool: pool}
}

var _ repository.ContactRepository = (*PgContactRepository)(nil)

const selectContact = `
	SELECT host_user_id, conversation_id, last_unread_count, has_vital_unread, is_blocked, is_pinned, last_used
	FROM chat.contact`

func (r *PgContactRepository) CreateContacts(ctx context.Context, contacts ...chat.Contact) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	if len(contacts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range contacts {
		batch.Queue(`
			INSERT INTO chat.contact (host_user_id, conversation_id, last_unread_count, has_vital_unread, is_blocked, is_pinned, last_used)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (host_user_id, conversation_id) DO NOTHING
		`, c.HostUserID, c.ChatID, c.LastUnreadCount, c.HasVitalUnread, c.IsBlocked, c.IsPinned, c.LastUsed)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func scanContact(row pgx.Row) (chat.Contact, error) {
	var c chat.Contact
	err := row.Scan(&c.HostUserID, &c.ChatID, &c.LastUnreadCount, &c.HasVitalUnread, &c.IsBlocked, &c.IsPinned, &c.LastUsed)
	return c, err
}

func (r *PgContactRepository) FindContact(ctx context.Context, hostUserID, chatID string) (*chat.Contact, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	c, err := scanContact(r.pool.QueryRow(ctx, selectContact+`
		WHERE host_user_id = $1 AND conversation_id = $2
	`, hostUserID, chatID))
	if err != nil {
		return nil, notFound(err, "contact", hostUserID+"/"+chatID)
	}
	return &c, nil
}

func (r *PgContactRepository) list(ctx context.Context, sql string, arg string) ([]chat.Contact, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PgContactRepository) ListContactsByChat(ctx context.Context, chatID string) ([]chat.Contact, error) {
	return r.list(ctx, selectContact+` WHERE conversation_id = $1 ORDER BY host_user_id`, chatID)
}

func (r *PgContactRepository) ListContactsByUser(ctx context.Context, hostUserID string) ([]chat.Contact, error) {
	return r.list(ctx, selectContact+`
		WHERE host_user_id = $1
		ORDER BY is_pinned DESC, last_used DESC, conversation_id
	`, hostUserID)
}

func (r *PgContactRepository) IncrementUnread(ctx context.Context, hostUserID, chatID string, vital bool, at time.Time) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE chat.contact
		SET last_unread_count = last_unread_count + 1,
		    has_vital_unread = has_vital_unread OR $3,
		    last_used = GREATEST(last_used, $4)
		WHERE host_user_id = $1 AND conversation_id = $2
	`, hostUserID, chatID, vital, at)
	return err
}

// update runs a single-row UPDATE and maps "no row" to ErrNotFound.
func (r *PgContactRepository) update(ctx context.Context, sql, hostUserID, chatID string, args ...any) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	ct, err := r.pool.Exec(ctx, sql, append([]any{hostUserID, chatID}, args...)...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("contact %s/%s: %w", hostUserID, chatID, chat.ErrNotFound)
	}
	return nil
}

func (r *PgContactRepository) ResetUnread(ctx context.Context, hostUserID, chatID string) error {
	return r.update(ctx, `
		UPDATE chat.contact SET last_unread_count = 0, has_vital_unread = false
		WHERE host_user_id = $1 AND conversation_id = $2
	`, hostUserID, chatID)
}

func (r *PgContactRepository) SetBlocked(ctx context.Context, hostUserID, chatID string, blocked bool) error {
	return r.update(ctx, `
		UPDATE chat.contact SET is_blocked = $3 WHERE host_user_id = $1 AND conversation_id = $2
	`, hostUserID, chatID, blocked)
}

func (r *PgContactRepository) SetPinned(ctx context.Context, hostUserID, chatID string, pinned bool) error {
	return r.update(ctx, `
		UPDATE chat.contact SET is_pinned = $3 WHERE host_user_id = $1 AND conversation_id = $2
	`, hostUserID, chatID, pinned)
}

func (r *PgContactRepository) DeleteContact(ctx context.Context, hostUserID, chatID string) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	_, err := r.pool.Exec(ctx, `
		DELETE FROM chat.contact WHERE host_user_id = $1 AND conversation_id = $2
	`, hostUserID, chatID)
	return err
}
