// Package pipeline composes signature verification, token verification and
// permission resolution into the fixed-order gate every admin API request
// passes through. The first failing stage rejects the request with a
// structured error; nothing downstream runs.
package pipeline

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sentra-admin/sentra-admin/internal/observability"
	"github.com/sentra-admin/sentra-admin/internal/permission"
	"github.com/sentra-admin/sentra-admin/internal/platform/httpx"
	"github.com/sentra-admin/sentra-admin/internal/shared"
	"github.com/sentra-admin/sentra-admin/internal/signature"
	"github.com/sentra-admin/sentra-admin/internal/token"
)

// Pipeline holds the per-process stage components. Per-request state lives on
// the stack of each invocation; the pipeline itself is immutable.
type Pipeline struct {
	logger      *slog.Logger
	signatures  *signature.Verifier
	tokens      *token.Service
	permissions *permission.Resolver
	metrics     *observability.Metrics
}

// New constructs a Pipeline.
func New(logger *slog.Logger, signatures *signature.Verifier, tokens *token.Service, permissions *permission.Resolver) *Pipeline {
	return &Pipeline{
		logger:      logger,
		signatures:  signatures,
		tokens:      tokens,
		permissions: permissions,
	}
}

// WithMetrics attaches rejection counters to the pipeline.
func (p *Pipeline) WithMetrics(metrics *observability.Metrics) *Pipeline {
	p.metrics = metrics
	return p
}

// Handler returns the chi middleware running the three stages in order:
// signature, token (with activity touch), permission. On success the request
// context carries the authenticated identity.
func (p *Pipeline) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			path := r.URL.Path

			if p.signatures.Enabled() && !p.signatures.ShouldSkip(path) {
				if err := p.checkSignature(r); err != nil {
					p.reject(w, r, "signature", err)
					return
				}
			}

			var ident *shared.Identity
			if !p.tokens.ShouldSkipAuth(path) {
				bearer, err := bearerToken(r)
				if err != nil {
					p.reject(w, r, "token", err)
					return
				}
				claims, _, err := p.tokens.Verify(ctx, bearer, true)
				if err != nil {
					p.reject(w, r, "token", err)
					return
				}
				ident = &shared.Identity{
					UserID:      claims.UserID,
					DeviceClass: claims.DeviceClass,
					TokenID:     claims.ID,
				}
				if claims.ExpiresAt != nil {
					ident.ExpiresAt = claims.ExpiresAt.Time
				}
				ctx = shared.ContextWithIdentity(ctx, ident)
			}

			if !p.permissions.ShouldSkip(path) {
				var userID int64
				if ident != nil {
					userID = ident.UserID
				}
				if err := p.permissions.Authorize(ctx, userID, path, r.Method); err != nil {
					p.reject(w, r, "permission", err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (p *Pipeline) checkSignature(r *http.Request) error {
	params, err := collectSignParams(r)
	if err != nil {
		return shared.MalformedInput("unreadable request body")
	}

	sig := headerOrParam(r, params, "X-Sign", "sign")
	if sig == "" {
		return shared.MalformedInput("missing signature")
	}
	rawTimestamp := headerOrParam(r, params, "X-Timestamp", "timestamp")
	if rawTimestamp == "" {
		return shared.MalformedInput("missing timestamp")
	}
	nonce := headerOrParam(r, params, "X-Nonce", "nonce")
	if nonce == "" {
		return shared.MalformedInput("missing nonce")
	}
	appType := headerOrParam(r, params, "X-App-Type", "app_type")
	if appType == "" {
		return shared.MalformedInput("missing app type")
	}

	timestamp, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return shared.MalformedInput("invalid timestamp")
	}

	return p.signatures.Verify(appType, timestamp, nonce, sig, params)
}

func (p *Pipeline) reject(w http.ResponseWriter, r *http.Request, stage string, err error) {
	kind := "internal"
	if gw, ok := shared.AsError(err); ok {
		kind = string(gw.Kind)
	}
	p.metrics.ObserveRejection(stage, kind)
	p.logger.Warn("request rejected",
		slog.String("stage", stage),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	httpx.RespondError(w, err)
}

// bearerToken extracts the credential from the Authorization header, falling
// back to the token request parameter.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header != "" {
		tok, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tok == "" {
			return "", shared.MalformedInput("malformed Authorization header")
		}
		return tok, nil
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", shared.Unauthorized(shared.KindTokenMissing, "missing Authorization header")
}

func headerOrParam(r *http.Request, params map[string]string, header, param string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	return params[param]
}
