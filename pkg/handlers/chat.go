package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/auth"
	"github.com/kcmh-data/sqlbot-engine/pkg/models"
	"github.com/kcmh-data/sqlbot-engine/pkg/services"
)

// ChatHandler serves POST /api/chat behind authentication.
type ChatHandler struct {
	orchestrator *services.ChatOrchestrator
	cookies      *auth.CookieManager
	users        *auth.UserStore
	logger       *zap.Logger
}

func NewChatHandler(orch *services.ChatOrchestrator, cookies *auth.CookieManager, users *auth.UserStore, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		orchestrator: orch,
		cookies:      cookies,
		users:        users,
		logger:       logger.Named("chat"),
	}
}

// RegisterRoutes mounts the handler behind the auth middleware.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/chat", auth.RequireAuth(h.cookies, h.users, http.HandlerFunc(h.chat)))
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		ErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req models.ChatRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		ErrorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	resp := h.orchestrator.Chat(r.Context(), user, req)
	WriteJSON(w, http.StatusOK, resp)
}
