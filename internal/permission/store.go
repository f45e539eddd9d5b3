package permission

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// RecordByRoute fetches the permission record for an exact (path, method) pair.
func (s *PGStore) RecordByRoute(ctx context.Context, path, method string) (*Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, `
		SELECT id, perm_name, perm_code, api_path, http_method, is_public,
		       rate_limit, route_priority, status
		FROM permissions
		WHERE api_path = $1 AND http_method = $2`,
		path, method,
	).Scan(&rec.ID, &rec.Name, &rec.Code, &rec.Path, &rec.Method,
		&rec.IsPublic, &rec.RateLimit, &rec.Priority, &rec.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// UserByID fetches the account fields the resolver consults.
func (s *PGStore) UserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, is_admin FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Status, &user.IsAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// HasPermission walks user -> role -> menu -> permission, counting only
// enabled roles and menu entries.
func (s *PGStore) HasPermission(ctx context.Context, userID, permissionID int64) (bool, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM user_roles ur
		JOIN roles r       ON r.id = ur.role_id
		JOIN role_menus rm ON rm.role_id = r.id
		JOIN menus m       ON m.id = rm.menu_id
		WHERE ur.user_id = $1
		  AND m.permission_id = $2
		  AND r.status = $3
		  AND m.status = $3`,
		userID, permissionID, StatusEnabled,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ Store = (*PGStore)(nil)
