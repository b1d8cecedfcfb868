package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/auth"
)

// AuthHandler serves login and logout.
type AuthHandler struct {
	users   *auth.UserStore
	cookies *auth.CookieManager
	limiter *auth.LoginLimiter
	logger  *zap.Logger
}

func NewAuthHandler(users *auth.UserStore, cookies *auth.CookieManager, limiter *auth.LoginLimiter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:   users,
		cookies: cookies,
		limiter: limiter,
		logger:  logger.Named("auth"),
	}
}

// RegisterRoutes mounts the handler.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/logout", h.logout)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	ip := auth.ClientIP(r)
	if locked, retryAfter := h.limiter.IsLocked(ip); locked {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
		ErrorResponse(w, http.StatusTooManyRequests, "too many failed logins, try again later")
		return
	}

	var req loginRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	user, err := h.users.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.limiter.RecordFailure(ip)
			h.logger.Info("login rejected", zap.String("ip", ip))
			ErrorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		ErrorResponse(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := h.cookies.SetUser(w, r, user.Email); err != nil {
		h.logger.Error("setting login cookie failed", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "login failed")
		return
	}
	h.limiter.RecordSuccess(ip)
	h.logger.Info("login succeeded", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.cookies.Clear(w, r); err != nil {
		h.logger.Warn("clearing login cookie failed", zap.Error(err))
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
