package session

import (
	"context"
	"time"
)

// Session status values stored in the database.
const (
	StatusInactive int16 = 0
	StatusActive   int16 = 1
)

// Session binds one live token to a (user, device-class) pair. At most one
// active session exists per pair; a new login replaces the previous one.
type Session struct {
	ID           int64
	UserID       int64
	DeviceClass  string
	DeviceInfo   string
	Token        string
	LoginIP      string
	LoginAt      time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
	Status       int16
}

// InvalidReason distinguishes why a session failed validation.
type InvalidReason string

const (
	ReasonNotFound      InvalidReason = "not_found"
	ReasonExpired       InvalidReason = "expired"
	ReasonTokenMismatch InvalidReason = "token_mismatch"
)

// ValidationResult reports the outcome of a session check.
type ValidationResult struct {
	Valid   bool
	Reason  InvalidReason
	Session *Session
}

// Registry defines persistence operations for user sessions.
type Registry interface {
	// Create atomically replaces any existing session for the
	// (user, device-class) pair and returns the new session id.
	Create(ctx context.Context, sess Session) (int64, error)
	// Validate checks the stored session against the presented token. An
	// expired session is marked inactive as a side effect.
	Validate(ctx context.Context, userID int64, deviceClass, token string) (ValidationResult, error)
	// Touch updates the last-active timestamp of the active session.
	Touch(ctx context.Context, userID int64, deviceClass string) error
	// DeleteAll removes the user's sessions, all device classes when
	// deviceClass is empty. Reports whether anything was removed.
	DeleteAll(ctx context.Context, userID int64, deviceClass string) (bool, error)
	// PurgeExpired marks sessions past their expiry inactive and returns
	// how many rows changed.
	PurgeExpired(ctx context.Context) (int64, error)
	// ListActive returns the user's live sessions, most recent login first.
	ListActive(ctx context.Context, userID int64) ([]Session, error)
}
