package permission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/sentra-admin/sentra-admin/internal/shared"
)

// Config carries the resolver settings loaded at startup.
type Config struct {
	// SuperAdminIDs always pass the membership check in addition to
	// accounts flagged as administrators in the database.
	SuperAdminIDs []int64
	// SkipRoutes lists paths exempt from permission checks.
	SkipRoutes []string
}

// Resolver decides whether a user may call a route. Stateless and safe for
// concurrent use; it never mutates the data it reads.
type Resolver struct {
	store       Store
	cache       *Cache
	superAdmins map[int64]struct{}
	skipRoutes  []string
	routes      singleflight.Group
}

// NewResolver constructs a Resolver. cache may be nil to disable decision
// memoization.
func NewResolver(store Store, cache *Cache, cfg Config) *Resolver {
	supers := make(map[int64]struct{}, len(cfg.SuperAdminIDs))
	for _, id := range cfg.SuperAdminIDs {
		supers[id] = struct{}{}
	}
	return &Resolver{
		store:       store,
		cache:       cache,
		superAdmins: supers,
		skipRoutes:  cfg.SkipRoutes,
	}
}

// ShouldSkip reports whether the path is exempt from permission checks.
func (r *Resolver) ShouldSkip(path string) bool {
	return shared.MatchRoute(r.skipRoutes, path)
}

// Authorize checks that userID may call (path, method). userID may be zero
// for anonymous requests, which only public records accept.
func (r *Resolver) Authorize(ctx context.Context, userID int64, path, method string) error {
	record, err := r.lookupRoute(ctx, path, strings.ToUpper(method))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return shared.NewError(shared.KindRouteNotRegistered, http.StatusNotFound, "route is not registered")
		}
		return err
	}

	if record.Status != StatusEnabled {
		return shared.NewError(shared.KindServiceUnavailable, http.StatusServiceUnavailable, "route is temporarily unavailable")
	}

	if record.IsPublic {
		return nil
	}

	user, err := r.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return shared.Unauthorized(shared.KindAccountDisabled, "account is disabled")
		}
		return err
	}
	if user.Status != StatusEnabled {
		return shared.Unauthorized(shared.KindAccountDisabled, "account is disabled")
	}

	if user.IsAdmin {
		return nil
	}
	if _, ok := r.superAdmins[userID]; ok {
		return nil
	}

	allowed, err := r.membership(ctx, userID, record.ID)
	if err != nil {
		return err
	}
	if !allowed {
		return shared.NewError(shared.KindPermissionDenied, http.StatusForbidden, "permission denied for this resource")
	}
	return nil
}

// IsPublicRoute reports whether the route exists and is marked public.
func (r *Resolver) IsPublicRoute(ctx context.Context, path, method string) (bool, error) {
	record, err := r.lookupRoute(ctx, path, strings.ToUpper(method))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.IsPublic, nil
}

// lookupRoute collapses concurrent identical route lookups into one query.
func (r *Resolver) lookupRoute(ctx context.Context, path, method string) (*Record, error) {
	key := method + " " + path
	v, err, _ := r.routes.Do(key, func() (any, error) {
		return r.store.RecordByRoute(ctx, path, method)
	})
	if err != nil {
		return nil, err
	}
	record, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("permission: unexpected lookup result for %s", key)
	}
	return record, nil
}

func (r *Resolver) membership(ctx context.Context, userID, permissionID int64) (bool, error) {
	if r.cache != nil {
		if allowed, hit := r.cache.GetMembership(ctx, userID, permissionID); hit {
			return allowed, nil
		}
	}
	allowed, err := r.store.HasPermission(ctx, userID, permissionID)
	if err != nil {
		return false, err
	}
	if r.cache != nil {
		r.cache.SetMembership(ctx, userID, permissionID, allowed)
	}
	return allowed, nil
}
