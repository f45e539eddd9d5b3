package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sentra-admin/sentra-admin/internal/auth"
	"github.com/sentra-admin/sentra-admin/internal/observability"
	"github.com/sentra-admin/sentra-admin/internal/pipeline"
	"github.com/sentra-admin/sentra-admin/internal/platform/httpx"
	"github.com/sentra-admin/sentra-admin/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	AuthHandler *auth.Handler
	Pipeline    *pipeline.Pipeline
	// Metrics is optional; when set the router records request metrics and
	// serves them on /metrics outside the protected subtree.
	Metrics *observability.Metrics
	// Mount attaches the protected business routes behind the pipeline.
	Mount func(chi.Router)
}

// NewRouter constructs the chi.Router with gateway defaults. Everything under
// /api passes through the auth pipeline; skip lists exempt the login,
// refresh and health routes from the stages they cannot satisfy yet.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
		r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
			params.Metrics.Handler().ServeHTTP(w, req)
		})
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(params.Pipeline.Handler())

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		api.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			ident := shared.IdentityFromContext(r.Context())
			if ident == nil {
				httpx.RespondError(w, shared.Unauthorized(shared.KindTokenMissing, "missing Authorization header"))
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{
				"user_id":      ident.UserID,
				"device_class": ident.DeviceClass,
				"expires_at":   ident.ExpiresAt,
			})
		})

		params.AuthHandler.MountRoutes(api)

		if params.Mount != nil {
			params.Mount(api)
		}
	})

	return r
}
