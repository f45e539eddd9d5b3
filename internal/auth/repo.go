package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the account does not exist.
var ErrNotFound = errors.New("auth: user not found")

// Repository defines persistence operations for the login flow.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	// RecordLoginSuccess resets the failure counter and stamps the login.
	RecordLoginSuccess(ctx context.Context, userID int64, sourceIP string) error
	// RecordLoginFailure bumps the consecutive-failure counter.
	RecordLoginFailure(ctx context.Context, userID int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches an account by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, username, nickname, password, status, is_admin,
		       login_failure_count, COALESCE(last_login_at, 'epoch'::timestamptz), COALESCE(last_login_ip, '')
		FROM users
		WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.Nickname, &user.PasswordHash,
		&user.Status, &user.IsAdmin, &user.LoginFailureCount,
		&user.LastLoginAt, &user.LastLoginIP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RecordLoginSuccess clears the failure counter and stores the login details.
func (r *PGRepository) RecordLoginSuccess(ctx context.Context, userID int64, sourceIP string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET login_failure_count = 0, last_login_at = now(), last_login_ip = $2
		WHERE id = $1`,
		userID, sourceIP)
	return err
}

// RecordLoginFailure bumps the consecutive-failure counter.
func (r *PGRepository) RecordLoginFailure(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET login_failure_count = login_failure_count + 1 WHERE id = $1`,
		userID)
	return err
}

var _ Repository = (*PGRepository)(nil)
