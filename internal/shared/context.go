package shared

import (
	"context"
	"time"
)

// Identity describes the authenticated actor attached to a request after the
// pipeline accepts it.
type Identity struct {
	UserID      int64
	DeviceClass string
	TokenID     string
	ExpiresAt   time.Time
}

type identityContextKey struct{}

// ContextWithIdentity stores the authenticated identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the authenticated identity, nil when the
// request passed through an auth-exempt route.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

// UserIDFromContext returns the authenticated user id, 0 when anonymous.
func UserIDFromContext(ctx context.Context) int64 {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UserID
	}
	return 0
}
