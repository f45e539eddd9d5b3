package permission

import (
	"context"
	"errors"
)

// StatusEnabled marks a record or account as usable.
const StatusEnabled int16 = 1

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("permission: not found")

// Record maps an HTTP route to the permission required to call it. Read-only
// at request time; (Path, Method) is unique among enabled records.
type Record struct {
	ID        int64
	Name      string
	Code      string
	Path      string
	Method    string
	IsPublic  bool
	RateLimit int
	Priority  int
	Status    int16
}

// User is the slice of the account record the resolver needs.
type User struct {
	ID      int64
	Status  int16
	IsAdmin bool
}

// Store defines the persistence queries behind the resolver.
type Store interface {
	// RecordByRoute looks up the permission record for (path, method),
	// method already upper-cased. Returns ErrNotFound when absent.
	RecordByRoute(ctx context.Context, path, method string) (*Record, error)
	// UserByID loads the account, ErrNotFound when absent.
	UserByID(ctx context.Context, id int64) (*User, error)
	// HasPermission reports whether any enabled role assigned to the user
	// carries an enabled menu entry bound to the permission.
	HasPermission(ctx context.Context, userID, permissionID int64) (bool, error)
}
