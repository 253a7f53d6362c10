package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	repository "zenchatty/internal/repository/port"
)

type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

var _ repository.UserRepository = (*PgUserRepository)(nil)

func (r *PgUserRepository) Create(ctx context.Context, user *repository.User) error {
	if r == nil || r.pool == nil {
		return errors.New("PgUserRepository: nil pool")
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO chat.app_user (id, display_name, allow_stranger_messages)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name,
		                               allow_stranger_messages = EXCLUDED.allow_stranger_messages
		RETURNING created_at
	`, user.ID, user.DisplayName, user.AllowStrangerMessages).Scan(&user.CreatedAt)
}

func (r *PgUserRepository) FindByID(ctx context.Context, id string) (*repository.User, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgUserRepository: nil pool")
	}
	var u repository.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, display_name, allow_stranger_messages, created_at
		FROM chat.app_user
		WHERE id = $1
	`, id).Scan(&u.ID, &u.DisplayName, &u.AllowStrangerMessages, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, repository.ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New("PgUserRepository: nil pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM chat.friendship WHERE user_id = $1 AND friend_id = $2)
	`, a, b).Scan(&ok)
	return ok, err
}

func (r *PgUserRepository) AddFriendship(ctx context.Context, a, b string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgUserRepository: nil pool")
	}
	if a == b {
		return errors.New("PgUserRepository: a user cannot befriend itself")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.friendship (user_id, friend_id)
		VALUES ($1, $2), ($2, $1)
		ON CONFLICT DO NOTHING
	`, a, b)
	return err
}
