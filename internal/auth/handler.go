package auth

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/sentra-admin/sentra-admin/internal/platform/httpx"
	"github.com/sentra-admin/sentra-admin/internal/shared"
	"github.com/sentra-admin/sentra-admin/internal/token"
)

// Handler wires the JSON authentication endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    *token.Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *token.Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		tokens:    tokens,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/auth/login", h.handleLogin)
	r.Post("/auth/refresh", h.handleRefresh)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/sessions", h.handleSessions)
}

type loginRequest struct {
	Username    string `json:"username" validate:"required,min=3"`
	Password    string `json:"password" validate:"required,min=8"`
	DeviceClass string `json:"device_class" validate:"required,oneof=desktop mobile tablet"`
	DeviceInfo  string `json:"device_info"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	SessionID   int64     `json:"session_id,omitempty"`
	DeviceClass string    `json:"device_class"`
	UserID      int64     `json:"user_id"`
	Nickname    string    `json:"nickname"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.MalformedInput("invalid request body"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.MalformedInput("%s", validationMessage(err)))
		return
	}

	sourceIP := clientIP(r)
	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password, sourceIP)
	if err != nil {
		h.logger.Warn("login rejected", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	issued, err := h.tokens.Issue(r.Context(), user.ID, req.DeviceClass, req.DeviceInfo, sourceIP, nil)
	if err != nil {
		h.logger.Error("issue token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:       issued.Token,
		ExpiresAt:   issued.ExpiresAt,
		SessionID:   issued.SessionID,
		DeviceClass: req.DeviceClass,
		UserID:      user.ID,
		Nickname:    user.Nickname,
	})
}

type refreshRequest struct {
	Token      string `json:"token"`
	DeviceInfo string `json:"device_info"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.MalformedInput("invalid request body"))
		return
	}
	oldToken := req.Token
	if oldToken == "" {
		oldToken = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if oldToken == "" {
		httpx.RespondError(w, shared.MalformedInput("missing token"))
		return
	}

	refreshed, err := h.tokens.Refresh(r.Context(), oldToken, req.DeviceInfo, clientIP(r))
	if err != nil {
		h.logger.Warn("refresh rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, refreshed)
}

type logoutRequest struct {
	DeviceClass string `json:"device_class"`
	AllDevices  bool   `json:"all_devices"`
}

type logoutResponse struct {
	Removed bool `json:"removed"`
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ident := shared.IdentityFromContext(r.Context())
	if ident == nil {
		httpx.RespondError(w, shared.Unauthorized(shared.KindTokenMissing, "missing Authorization header"))
		return
	}

	var req logoutRequest
	_ = httpx.DecodeJSON(r, &req)
	deviceClass := req.DeviceClass
	if deviceClass == "" && !req.AllDevices {
		deviceClass = ident.DeviceClass
	}

	removed, err := h.tokens.Logout(r.Context(), ident.UserID, deviceClass)
	if err != nil {
		h.logger.Error("logout", slog.Int64("user_id", ident.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, logoutResponse{Removed: removed})
}

type sessionView struct {
	DeviceClass  string    `json:"device_class"`
	DeviceInfo   string    `json:"device_info"`
	LoginIP      string    `json:"login_ip"`
	LoginAt      time.Time `json:"login_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	ident := shared.IdentityFromContext(r.Context())
	if ident == nil {
		httpx.RespondError(w, shared.Unauthorized(shared.KindTokenMissing, "missing Authorization header"))
		return
	}

	sessions, err := h.tokens.ActiveSessions(r.Context(), ident.UserID)
	if err != nil {
		h.logger.Error("list sessions", slog.Int64("user_id", ident.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionView{
			DeviceClass:  sess.DeviceClass,
			DeviceInfo:   sess.DeviceInfo,
			LoginIP:      sess.LoginIP,
			LoginAt:      sess.LoginAt,
			LastActiveAt: sess.LastActiveAt,
			ExpiresAt:    sess.ExpiresAt,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}

// clientIP strips the port from the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// validationMessage keeps the first field error, enough for the client to act on.
func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return "invalid field: " + strings.ToLower(fields[0].Field())
	}
	return "validation failed"
}
