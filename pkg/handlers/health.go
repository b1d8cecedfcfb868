package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports process and database health.
type HealthHandler struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewHealthHandler(pool *pgxpool.Pool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, logger: logger.Named("health")}
}

// RegisterRoutes mounts the handler.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.health)
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	database := "ok"
	status := "ok"
	if err := h.pool.Ping(ctx); err != nil {
		h.logger.Warn("database ping failed", zap.Error(err))
		database = "error"
		status = "degraded"
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": database,
	})
}
