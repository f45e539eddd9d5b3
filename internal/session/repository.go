package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRegistry implements Registry using PostgreSQL. The user_sessions table
// carries a uniqueness constraint on (user_id, device_class), so concurrent
// logins for the same pair serialize on the upsert and the later write wins.
type PGRegistry struct {
	pool *pgxpool.Pool
}

// NewPGRegistry constructs a PostgreSQL backed registry.
func NewPGRegistry(pool *pgxpool.Pool) *PGRegistry {
	return &PGRegistry{pool: pool}
}

// Create inserts the session, replacing a previous one for the same
// (user_id, device_class) in a single atomic statement.
func (r *PGRegistry) Create(ctx context.Context, sess Session) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_sessions
			(user_id, device_class, device_info, token, login_ip, login_at, last_active_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
		ON CONFLICT (user_id, device_class) DO UPDATE SET
			device_info    = EXCLUDED.device_info,
			token          = EXCLUDED.token,
			login_ip       = EXCLUDED.login_ip,
			login_at       = EXCLUDED.login_at,
			last_active_at = EXCLUDED.last_active_at,
			expires_at     = EXCLUDED.expires_at,
			status         = EXCLUDED.status
		RETURNING id`,
		sess.UserID, sess.DeviceClass, sess.DeviceInfo, sess.Token,
		sess.LoginIP, sess.LoginAt.UTC(), sess.ExpiresAt.UTC(), StatusActive,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Validate loads the active session for the pair and checks expiry and token
// equality, reporting a distinct reason for each failure mode.
func (r *PGRegistry) Validate(ctx context.Context, userID int64, deviceClass, token string) (ValidationResult, error) {
	var sess Session
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, device_class, device_info, token, login_ip,
		       login_at, last_active_at, expires_at, status
		FROM user_sessions
		WHERE user_id = $1 AND device_class = $2 AND status = $3`,
		userID, deviceClass, StatusActive,
	).Scan(&sess.ID, &sess.UserID, &sess.DeviceClass, &sess.DeviceInfo, &sess.Token,
		&sess.LoginIP, &sess.LoginAt, &sess.LastActiveAt, &sess.ExpiresAt, &sess.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ValidationResult{Reason: ReasonNotFound}, nil
		}
		return ValidationResult{}, err
	}

	if sess.ExpiresAt.Before(time.Now()) {
		_, err := r.pool.Exec(ctx,
			`UPDATE user_sessions SET status = $1 WHERE id = $2`,
			StatusInactive, sess.ID)
		if err != nil {
			return ValidationResult{}, err
		}
		return ValidationResult{Reason: ReasonExpired}, nil
	}

	if sess.Token != token {
		return ValidationResult{Reason: ReasonTokenMismatch}, nil
	}

	return ValidationResult{Valid: true, Session: &sess}, nil
}

// Touch refreshes the last-active timestamp of the active session.
func (r *PGRegistry) Touch(ctx context.Context, userID int64, deviceClass string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE user_sessions SET last_active_at = now()
		WHERE user_id = $1 AND device_class = $2 AND status = $3`,
		userID, deviceClass, StatusActive)
	return err
}

// DeleteAll removes the user's sessions, optionally scoped to one device class.
func (r *PGRegistry) DeleteAll(ctx context.Context, userID int64, deviceClass string) (bool, error) {
	if deviceClass == "" {
		cmd, err := r.pool.Exec(ctx,
			`DELETE FROM user_sessions WHERE user_id = $1`, userID)
		if err != nil {
			return false, err
		}
		return cmd.RowsAffected() > 0, nil
	}
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM user_sessions WHERE user_id = $1 AND device_class = $2`,
		userID, deviceClass)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// PurgeExpired flips sessions past expiry to inactive.
func (r *PGRegistry) PurgeExpired(ctx context.Context) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE user_sessions SET status = $1
		WHERE expires_at < now() AND status = $2`,
		StatusInactive, StatusActive)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ListActive returns live sessions for the user ordered by login time.
func (r *PGRegistry) ListActive(ctx context.Context, userID int64) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, device_class, device_info, token, login_ip,
		       login_at, last_active_at, expires_at, status
		FROM user_sessions
		WHERE user_id = $1 AND status = $2 AND expires_at > now()
		ORDER BY login_at DESC`,
		userID, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.DeviceClass, &sess.DeviceInfo,
			&sess.Token, &sess.LoginIP, &sess.LoginAt, &sess.LastActiveAt,
			&sess.ExpiresAt, &sess.Status); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

var _ Registry = (*PGRegistry)(nil)
