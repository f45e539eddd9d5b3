package token

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sentra-admin/sentra-admin/internal/session"
	"github.com/sentra-admin/sentra-admin/internal/shared"
)

// Config carries the immutable token settings loaded at startup.
type Config struct {
	Secret      string
	TTL         time.Duration
	RefreshTTL  time.Duration
	GracePeriod time.Duration
	Issuer      string
	Audience    string
	// SessionManagement binds every issued token to a server-side session.
	// When disabled, Issue/Verify/Logout degrade to claim-only behavior.
	SessionManagement bool
	// SkipRoutes lists paths exempt from bearer authentication, exact or
	// prefix-wildcard ("/api/public/*").
	SkipRoutes []string
}

// Service issues, verifies and refreshes signed tokens bound to sessions.
type Service struct {
	cfg      Config
	sessions session.Registry
}

// NewService constructs a token Service. The registry may be nil when session
// management is disabled.
func NewService(cfg Config, sessions session.Registry) *Service {
	return &Service{cfg: cfg, sessions: sessions}
}

// IssueResult is returned by Issue and Refresh.
type IssueResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SessionID int64     `json:"session_id,omitempty"`
}

// RefreshResult extends IssueResult with the grace-period marker.
type RefreshResult struct {
	IssueResult
	FromGracePeriod bool `json:"from_grace_period,omitempty"`
}

// Issue signs a fresh token for the identity and atomically replaces the
// session for (userID, deviceClass). Extra claims may not override the
// reserved payload fields.
func (s *Service) Issue(ctx context.Context, userID int64, deviceClass, deviceInfo, sourceIP string, extra map[string]any) (*IssueResult, error) {
	if !ValidDeviceClass(deviceClass) {
		return nil, shared.NewError(shared.KindInvalidDeviceClass, http.StatusBadRequest, "invalid device class")
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.TTL)
	payload := jwt.MapClaims{
		"iss":          s.cfg.Issuer,
		"aud":          s.cfg.Audience,
		"iat":          now.Unix(),
		"nbf":          now.Unix(),
		"exp":          expiresAt.Unix(),
		"jti":          newTokenID(userID, deviceClass),
		"user_id":      userID,
		"device_class": deviceClass,
	}
	for k, v := range extra {
		if _, reserved := payload[k]; reserved {
			continue
		}
		payload[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, err
	}

	result := &IssueResult{Token: signed, ExpiresAt: expiresAt}
	if !s.cfg.SessionManagement {
		return result, nil
	}

	sessionID, err := s.sessions.Create(ctx, session.Session{
		UserID:      userID,
		DeviceClass: deviceClass,
		DeviceInfo:  deviceInfo,
		Token:       signed,
		LoginIP:     sourceIP,
		LoginAt:     now,
		ExpiresAt:   expiresAt,
		Status:      session.StatusActive,
	})
	if err != nil {
		return nil, shared.NewError(shared.KindSessionPersist, http.StatusInternalServerError, "failed to persist session")
	}
	result.SessionID = sessionID
	return result, nil
}

// Verify decodes and validates the token, then checks the bound session when
// session management is enabled. touchActivity refreshes the session's
// last-active timestamp on success.
func (s *Service) Verify(ctx context.Context, tokenStr string, touchActivity bool) (*Claims, *session.Session, error) {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil, nil, err
	}

	if !s.cfg.SessionManagement {
		return claims, nil, nil
	}

	result, err := s.sessions.Validate(ctx, claims.UserID, claims.DeviceClass, tokenStr)
	if err != nil {
		return nil, nil, err
	}
	if !result.Valid {
		switch result.Reason {
		case session.ReasonExpired:
			return nil, nil, shared.Unauthorized(shared.KindSessionExpired, "session has expired")
		case session.ReasonTokenMismatch:
			return nil, nil, shared.Unauthorized(shared.KindSessionMismatch, "session token mismatch")
		default:
			return nil, nil, shared.Unauthorized(shared.KindSessionNotFound, "session not found")
		}
	}

	if touchActivity {
		// Advisory only, a failed touch does not reject the request.
		_ = s.sessions.Touch(ctx, claims.UserID, claims.DeviceClass)
	}
	return claims, result.Session, nil
}

// Refresh exchanges a token for a fresh one. An expired token is still
// accepted within the configured grace period after expiry; the result is
// then flagged FromGracePeriod. Any other verification failure denies refresh.
func (s *Service) Refresh(ctx context.Context, oldToken, deviceInfo, sourceIP string) (*RefreshResult, error) {
	claims, err := s.peek(oldToken)
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 || claims.DeviceClass == "" {
		return nil, shared.Unauthorized(shared.KindRefreshDenied, "token is missing identity claims")
	}
	if s.cfg.RefreshTTL > 0 && claims.IssuedAt != nil &&
		time.Since(claims.IssuedAt.Time) > s.cfg.RefreshTTL {
		return nil, shared.Unauthorized(shared.KindRefreshDenied, "token is beyond the refresh lifetime")
	}

	fromGrace := false
	if _, _, err := s.Verify(ctx, oldToken, false); err != nil {
		if !shared.IsKind(err, shared.KindTokenExpired) {
			return nil, shared.Unauthorized(shared.KindRefreshDenied, "token cannot be refreshed")
		}
		if claims.ExpiresAt == nil || time.Since(claims.ExpiresAt.Time) > s.cfg.GracePeriod {
			return nil, shared.Unauthorized(shared.KindRefreshDenied, "token expired beyond the grace period")
		}
		fromGrace = true
	}

	issued, err := s.Issue(ctx, claims.UserID, claims.DeviceClass, deviceInfo, sourceIP, nil)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{IssueResult: *issued, FromGracePeriod: fromGrace}, nil
}

// Logout removes the user's sessions, all device classes when deviceClass is
// empty. Reports whether anything was removed; a missing session is not an
// error.
func (s *Service) Logout(ctx context.Context, userID int64, deviceClass string) (bool, error) {
	if !s.cfg.SessionManagement {
		return false, nil
	}
	return s.sessions.DeleteAll(ctx, userID, deviceClass)
}

// ActiveSessions lists the user's live sessions.
func (s *Service) ActiveSessions(ctx context.Context, userID int64) ([]session.Session, error) {
	if !s.cfg.SessionManagement {
		return nil, nil
	}
	return s.sessions.ListActive(ctx, userID)
}

// PurgeExpired marks sessions past expiry inactive, returning the count.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	if !s.cfg.SessionManagement {
		return 0, nil
	}
	return s.sessions.PurgeExpired(ctx)
}

// ShouldSkipAuth reports whether the path is exempt from bearer auth.
func (s *Service) ShouldSkipAuth(path string) bool {
	return shared.MatchRoute(s.cfg.SkipRoutes, path)
}

// parse decodes the token and maps library failures onto the gateway error
// taxonomy.
func (s *Service) parse(tokenStr string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err == nil {
		return &claims, nil
	}
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, shared.Unauthorized(shared.KindTokenExpired, "token has expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, shared.Unauthorized(shared.KindTokenInvalid, "token signature is invalid")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, shared.Unauthorized(shared.KindTokenNotYetValid, "token is not valid yet")
	default:
		return nil, shared.Unauthorized(shared.KindTokenMalformed, "token is malformed")
	}
}

// peek extracts claims without checking signature or validity, used by
// Refresh to recover the identity from an expired token.
func (s *Service) peek(tokenStr string) (*Claims, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return nil, shared.Unauthorized(shared.KindTokenMalformed, "token is malformed")
	}
	return &claims, nil
}
