package permission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sentra-admin/sentra-admin/internal/shared"
)

type memoryStore struct {
	records     map[string]*Record
	users       map[int64]*User
	memberships map[[2]int64]bool

	permCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:     make(map[string]*Record),
		users:       make(map[int64]*User),
		memberships: make(map[[2]int64]bool),
	}
}

func (s *memoryStore) addRecord(rec Record) {
	s.records[rec.Method+" "+rec.Path] = &rec
}

func (s *memoryStore) RecordByRoute(ctx context.Context, path, method string) (*Record, error) {
	rec, ok := s.records[method+" "+path]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) UserByID(ctx context.Context, userID int64) (*User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *memoryStore) HasPermission(ctx context.Context, userID, permissionID int64) (bool, error) {
	s.permCalls++
	return s.memberships[[2]int64{userID, permissionID}], nil
}

func fixtureStore() *memoryStore {
	store := newMemoryStore()
	store.addRecord(Record{ID: 1, Path: "/api/users", Method: "GET", Status: StatusEnabled})
	store.addRecord(Record{ID: 2, Path: "/api/docs", Method: "GET", IsPublic: true, Status: StatusEnabled})
	store.addRecord(Record{ID: 3, Path: "/api/legacy", Method: "GET", Status: 0})
	store.users[10] = &User{ID: 10, Status: StatusEnabled}
	store.users[11] = &User{ID: 11, Status: 0}
	store.users[12] = &User{ID: 12, Status: StatusEnabled, IsAdmin: true}
	store.users[13] = &User{ID: 13, Status: StatusEnabled}
	store.memberships[[2]int64{10, 1}] = true
	return store
}

func TestAuthorizeUnregisteredRoute(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{})

	err := r.Authorize(context.Background(), 10, "/api/missing", "GET")
	require.True(t, shared.IsKind(err, shared.KindRouteNotRegistered))
}

func TestAuthorizeDisabledRoute(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{})

	err := r.Authorize(context.Background(), 10, "/api/legacy", "GET")
	require.True(t, shared.IsKind(err, shared.KindServiceUnavailable))
}

func TestAuthorizePublicRouteSkipsUserChecks(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{})

	// Anonymous and unknown callers both pass on a public record.
	require.NoError(t, r.Authorize(context.Background(), 0, "/api/docs", "GET"))
	require.NoError(t, r.Authorize(context.Background(), 999, "/api/docs", "GET"))
}

func TestAuthorizeUnknownUser(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{})

	err := r.Authorize(context.Background(), 999, "/api/users", "GET")
	require.True(t, shared.IsKind(err, shared.KindAccountDisabled))
}

func TestAuthorizeDisabledUser(t *testing.T) {
	store := fixtureStore()
	// Membership alone never rescues a disabled account.
	store.memberships[[2]int64{11, 1}] = true
	r := NewResolver(store, nil, Config{})

	err := r.Authorize(context.Background(), 11, "/api/users", "GET")
	require.True(t, shared.IsKind(err, shared.KindAccountDisabled))
}

func TestAuthorizeAdminFlagBypassesMembership(t *testing.T) {
	store := fixtureStore()
	r := NewResolver(store, nil, Config{})

	require.NoError(t, r.Authorize(context.Background(), 12, "/api/users", "GET"))
	require.Zero(t, store.permCalls)
}

func TestAuthorizeConfiguredSuperAdmin(t *testing.T) {
	store := fixtureStore()
	r := NewResolver(store, nil, Config{SuperAdminIDs: []int64{13}})

	require.NoError(t, r.Authorize(context.Background(), 13, "/api/users", "GET"))
	require.Zero(t, store.permCalls)
}

func TestAuthorizeMembership(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{})

	require.NoError(t, r.Authorize(context.Background(), 10, "/api/users", "GET"))

	err := r.Authorize(context.Background(), 13, "/api/users", "GET")
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))
}

func TestAuthorizeMethodCaseInsensitive(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{})

	require.NoError(t, r.Authorize(context.Background(), 10, "/api/users", "get"))
}

func TestAuthorizeCachesMembership(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := fixtureStore()
	r := NewResolver(store, NewCache(client, time.Hour), Config{})

	require.NoError(t, r.Authorize(context.Background(), 10, "/api/users", "GET"))
	require.NoError(t, r.Authorize(context.Background(), 10, "/api/users", "GET"))
	require.Equal(t, 1, store.permCalls)

	// Denials are cached too.
	err := r.Authorize(context.Background(), 13, "/api/users", "GET")
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))
	err = r.Authorize(context.Background(), 13, "/api/users", "GET")
	require.True(t, shared.IsKind(err, shared.KindPermissionDenied))
	require.Equal(t, 2, store.permCalls)

	mr.FlushAll()
	require.NoError(t, r.Authorize(context.Background(), 10, "/api/users", "GET"))
	require.Equal(t, 3, store.permCalls)
}

func TestCacheInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCache(client, time.Hour)
	ctx := context.Background()
	cache.SetMembership(ctx, 10, 1, true)
	cache.SetMembership(ctx, 10, 2, false)
	cache.SetMembership(ctx, 20, 1, true)

	require.NoError(t, cache.Invalidate(ctx, 10))

	_, hit := cache.GetMembership(ctx, 10, 1)
	require.False(t, hit)
	_, hit = cache.GetMembership(ctx, 10, 2)
	require.False(t, hit)
	allowed, hit := cache.GetMembership(ctx, 20, 1)
	require.True(t, hit)
	require.True(t, allowed)
}

func TestIsPublicRoute(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{})
	ctx := context.Background()

	public, err := r.IsPublicRoute(ctx, "/api/docs", "GET")
	require.NoError(t, err)
	require.True(t, public)

	public, err = r.IsPublicRoute(ctx, "/api/users", "GET")
	require.NoError(t, err)
	require.False(t, public)

	public, err = r.IsPublicRoute(ctx, "/api/missing", "GET")
	require.NoError(t, err)
	require.False(t, public)
}

func TestShouldSkip(t *testing.T) {
	r := NewResolver(fixtureStore(), nil, Config{SkipRoutes: []string{"/api/auth/*", "/api/health"}})

	require.True(t, r.ShouldSkip("/api/auth/login"))
	require.True(t, r.ShouldSkip("/api/health"))
	require.False(t, r.ShouldSkip("/api/users"))
}
