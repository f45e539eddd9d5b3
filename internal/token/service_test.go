package token

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/sentra-admin/sentra-admin/internal/session"
	"github.com/sentra-admin/sentra-admin/internal/shared"
)

type memoryRegistry struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[string]*session.Session
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{sessions: make(map[string]*session.Session)}
}

func key(userID int64, deviceClass string) string {
	return fmt.Sprintf("%d:%s", userID, deviceClass)
}

func (r *memoryRegistry) Create(ctx context.Context, sess session.Session) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sess.ID = r.nextID
	sess.Status = session.StatusActive
	r.sessions[key(sess.UserID, sess.DeviceClass)] = &sess
	return sess.ID, nil
}

func (r *memoryRegistry) Validate(ctx context.Context, userID int64, deviceClass, token string) (session.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[key(userID, deviceClass)]
	if !ok || sess.Status != session.StatusActive {
		return session.ValidationResult{Reason: session.ReasonNotFound}, nil
	}
	if sess.ExpiresAt.Before(time.Now()) {
		sess.Status = session.StatusInactive
		return session.ValidationResult{Reason: session.ReasonExpired}, nil
	}
	if sess.Token != token {
		return session.ValidationResult{Reason: session.ReasonTokenMismatch}, nil
	}
	copied := *sess
	return session.ValidationResult{Valid: true, Session: &copied}, nil
}

func (r *memoryRegistry) Touch(ctx context.Context, userID int64, deviceClass string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[key(userID, deviceClass)]; ok && sess.Status == session.StatusActive {
		sess.LastActiveAt = time.Now()
	}
	return nil
}

func (r *memoryRegistry) DeleteAll(ctx context.Context, userID int64, deviceClass string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := false
	for k, sess := range r.sessions {
		if sess.UserID != userID {
			continue
		}
		if deviceClass != "" && sess.DeviceClass != deviceClass {
			continue
		}
		delete(r.sessions, k)
		removed = true
	}
	return removed, nil
}

func (r *memoryRegistry) PurgeExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, sess := range r.sessions {
		if sess.Status == session.StatusActive && sess.ExpiresAt.Before(time.Now()) {
			sess.Status = session.StatusInactive
			count++
		}
	}
	return count, nil
}

func (r *memoryRegistry) ListActive(ctx context.Context, userID int64) ([]session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []session.Session
	for _, sess := range r.sessions {
		if sess.UserID == userID && sess.Status == session.StatusActive && sess.ExpiresAt.After(time.Now()) {
			out = append(out, *sess)
		}
	}
	return out, nil
}

func (r *memoryRegistry) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, sess := range r.sessions {
		if sess.Status == session.StatusActive {
			count++
		}
	}
	return count
}

const testSecret = "unit-test-signing-secret"

func testConfig(ttl time.Duration) Config {
	return Config{
		Secret:            testSecret,
		TTL:               ttl,
		RefreshTTL:        14 * 24 * time.Hour,
		GracePeriod:       5 * time.Minute,
		Issuer:            "sentra-admin",
		Audience:          "sentra-clients",
		SessionManagement: true,
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	for _, deviceClass := range []string{DeviceDesktop, DeviceMobile, DeviceTablet} {
		issued, err := svc.Issue(context.Background(), 42, deviceClass, "ua", "10.0.0.1", nil)
		require.NoError(t, err)
		require.NotEmpty(t, issued.Token)
		require.NotZero(t, issued.SessionID)

		claims, sess, err := svc.Verify(context.Background(), issued.Token, true)
		require.NoError(t, err)
		require.Equal(t, int64(42), claims.UserID)
		require.Equal(t, deviceClass, claims.DeviceClass)
		require.NotNil(t, sess)
		require.Greater(t, claims.RemainingSeconds(), int64(0))
	}
}

func TestIssueRejectsUnknownDeviceClass(t *testing.T) {
	svc := NewService(testConfig(time.Hour), newMemoryRegistry())

	_, err := svc.Issue(context.Background(), 1, "smartwatch", "", "", nil)
	require.True(t, shared.IsKind(err, shared.KindInvalidDeviceClass))
}

func TestIssueGeneratesFreshTokenIDs(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	first, err := svc.Issue(context.Background(), 7, DeviceDesktop, "", "", nil)
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), 7, DeviceDesktop, "", "", nil)
	require.NoError(t, err)

	firstClaims, err := svc.peek(first.Token)
	require.NoError(t, err)
	secondClaims, err := svc.peek(second.Token)
	require.NoError(t, err)
	require.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestReissueReplacesSession(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	first, err := svc.Issue(context.Background(), 7, DeviceMobile, "", "", nil)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), 7, DeviceMobile, "", "", nil)
	require.NoError(t, err)

	require.Equal(t, 1, registry.activeCount())

	_, _, err = svc.Verify(context.Background(), first.Token, false)
	require.True(t, shared.IsKind(err, shared.KindSessionMismatch))
}

func TestVerifyExpiredToken(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(-time.Second), registry)

	issued, err := svc.Issue(context.Background(), 9, DeviceDesktop, "", "", nil)
	require.NoError(t, err)

	_, _, err = svc.Verify(context.Background(), issued.Token, false)
	require.True(t, shared.IsKind(err, shared.KindTokenExpired))
}

func TestVerifyWrongSecret(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)
	issued, err := svc.Issue(context.Background(), 9, DeviceDesktop, "", "", nil)
	require.NoError(t, err)

	otherCfg := testConfig(time.Hour)
	otherCfg.Secret = "a-different-signing-secret"
	other := NewService(otherCfg, registry)

	_, _, err = other.Verify(context.Background(), issued.Token, false)
	require.True(t, shared.IsKind(err, shared.KindTokenInvalid))
}

func TestVerifyNotYetValid(t *testing.T) {
	svc := NewService(testConfig(time.Hour), newMemoryRegistry())

	future := time.Now().Add(time.Hour)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":      int64(3),
		"device_class": DeviceDesktop,
		"nbf":          future.Unix(),
		"exp":          future.Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, _, err = svc.Verify(context.Background(), raw, false)
	require.True(t, shared.IsKind(err, shared.KindTokenNotYetValid))
}

func TestVerifyGarbage(t *testing.T) {
	svc := NewService(testConfig(time.Hour), newMemoryRegistry())

	_, _, err := svc.Verify(context.Background(), "not-a-token", false)
	require.True(t, shared.IsKind(err, shared.KindTokenMalformed))
}

func TestRefreshWithinGracePeriod(t *testing.T) {
	registry := newMemoryRegistry()

	expiredCfg := testConfig(-30 * time.Second)
	expired := NewService(expiredCfg, registry)
	issued, err := expired.Issue(context.Background(), 11, DeviceTablet, "", "", nil)
	require.NoError(t, err)

	fresh := NewService(testConfig(time.Hour), registry)
	refreshed, err := fresh.Refresh(context.Background(), issued.Token, "ua", "10.0.0.2")
	require.NoError(t, err)
	require.True(t, refreshed.FromGracePeriod)

	claims, _, err := fresh.Verify(context.Background(), refreshed.Token, false)
	require.NoError(t, err)
	require.Equal(t, int64(11), claims.UserID)
	require.Equal(t, DeviceTablet, claims.DeviceClass)
}

func TestRefreshBeyondGracePeriod(t *testing.T) {
	registry := newMemoryRegistry()

	expired := NewService(testConfig(-time.Hour), registry)
	issued, err := expired.Issue(context.Background(), 11, DeviceTablet, "", "", nil)
	require.NoError(t, err)

	fresh := NewService(testConfig(time.Hour), registry)
	_, err = fresh.Refresh(context.Background(), issued.Token, "", "")
	require.True(t, shared.IsKind(err, shared.KindRefreshDenied))
}

func TestRefreshValidTokenSupersedesSession(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	issued, err := svc.Issue(context.Background(), 5, DeviceDesktop, "", "", nil)
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), issued.Token, "", "")
	require.NoError(t, err)
	require.False(t, refreshed.FromGracePeriod)

	_, _, err = svc.Verify(context.Background(), issued.Token, false)
	require.True(t, shared.IsKind(err, shared.KindSessionMismatch))
}

func TestRefreshMalformedToken(t *testing.T) {
	svc := NewService(testConfig(time.Hour), newMemoryRegistry())

	_, err := svc.Refresh(context.Background(), "garbage", "", "")
	require.True(t, shared.IsKind(err, shared.KindTokenMalformed))
}

func TestLogout(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	issued, err := svc.Issue(context.Background(), 13, DeviceDesktop, "", "", nil)
	require.NoError(t, err)

	removed, err := svc.Logout(context.Background(), 13, DeviceDesktop)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = svc.Logout(context.Background(), 13, DeviceDesktop)
	require.NoError(t, err)
	require.False(t, removed)

	_, _, err = svc.Verify(context.Background(), issued.Token, false)
	require.True(t, shared.IsKind(err, shared.KindSessionNotFound))
}

func TestLogoutAllDeviceClasses(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	_, err := svc.Issue(context.Background(), 14, DeviceDesktop, "", "", nil)
	require.NoError(t, err)
	_, err = svc.Issue(context.Background(), 14, DeviceMobile, "", "", nil)
	require.NoError(t, err)

	removed, err := svc.Logout(context.Background(), 14, "")
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, 0, registry.activeCount())
}

func TestSessionManagementDisabled(t *testing.T) {
	cfg := testConfig(time.Hour)
	cfg.SessionManagement = false
	svc := NewService(cfg, nil)

	issued, err := svc.Issue(context.Background(), 21, DeviceDesktop, "", "", nil)
	require.NoError(t, err)
	require.Zero(t, issued.SessionID)

	claims, sess, err := svc.Verify(context.Background(), issued.Token, true)
	require.NoError(t, err)
	require.Nil(t, sess)
	require.Equal(t, int64(21), claims.UserID)

	removed, err := svc.Logout(context.Background(), 21, "")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestExtraClaimsCannotOverrideReservedFields(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	issued, err := svc.Issue(context.Background(), 30, DeviceDesktop, "", "", map[string]any{
		"user_id": int64(999),
		"tenant":  "acme",
	})
	require.NoError(t, err)

	claims, _, err := svc.Verify(context.Background(), issued.Token, false)
	require.NoError(t, err)
	require.Equal(t, int64(30), claims.UserID)
}

func TestShouldSkipAuth(t *testing.T) {
	cfg := testConfig(time.Hour)
	cfg.SkipRoutes = []string{"/api/auth/login", "/api/public/*"}
	svc := NewService(cfg, nil)

	require.True(t, svc.ShouldSkipAuth("/api/auth/login"))
	require.True(t, svc.ShouldSkipAuth("/api/public/docs"))
	require.False(t, svc.ShouldSkipAuth("/api/auth/logout"))
	require.False(t, svc.ShouldSkipAuth("/api/users"))
}

func TestClaimInspection(t *testing.T) {
	registry := newMemoryRegistry()
	svc := NewService(testConfig(time.Hour), registry)

	issued, err := svc.Issue(context.Background(), 1, DeviceDesktop, "", "", nil)
	require.NoError(t, err)
	claims, _, err := svc.Verify(context.Background(), issued.Token, false)
	require.NoError(t, err)

	require.False(t, claims.ExpiringSoon(30*time.Minute))
	require.True(t, claims.ExpiringSoon(2*time.Hour))
	require.Greater(t, claims.RemainingSeconds(), int64(3500))
}
