package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kcmh-data/sqlbot-engine/pkg/auth"
	"github.com/kcmh-data/sqlbot-engine/pkg/concepts"
	"github.com/kcmh-data/sqlbot-engine/pkg/config"
	"github.com/kcmh-data/sqlbot-engine/pkg/database"
	"github.com/kcmh-data/sqlbot-engine/pkg/guard"
	"github.com/kcmh-data/sqlbot-engine/pkg/handlers"
	"github.com/kcmh-data/sqlbot-engine/pkg/llm"
	"github.com/kcmh-data/sqlbot-engine/pkg/logging"
	"github.com/kcmh-data/sqlbot-engine/pkg/middleware"
	"github.com/kcmh-data/sqlbot-engine/pkg/schema"
	"github.com/kcmh-data/sqlbot-engine/pkg/services"
	"github.com/kcmh-data/sqlbot-engine/pkg/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires everything and serves until interrupted. Only startup failures
// return an error; runtime errors are per-request.
func run() error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Server.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		return err
	}
	handle := schema.NewHandle(catalog)

	pool, err := database.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	library, err := concepts.Load(cfg.Concepts.Path, logger)
	if err != nil {
		return err
	}

	users, err := auth.LoadUserStore(cfg.Auth.UsersCSV, cfg.Auth.SuperUsersJSON, logger)
	if err != nil {
		return err
	}
	cookies := auth.NewCookieManager(cfg.Auth.SessionSecret, cfg.Auth.CookieName, cfg.Auth.CookieMaxAge)
	limiter := auth.NewLoginLimiter()

	client, err := llm.NewClient(llm.Options{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
	}, logger)
	if err != nil {
		return err
	}

	sessions := session.NewManager(cfg.Safety.HistoryWindow,
		time.Duration(cfg.Safety.SessionTTLHours)*time.Hour, logger)
	g := guard.New(cfg.Safety.MaxRows, true, logger)
	executor := database.NewExecutor(pool, cfg.Safety.StatementTimeoutMs, cfg.Safety.MaxRows, logger)
	orchestrator := services.NewChatOrchestrator(handle, g, executor, client, sessions, library, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(pool, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(users, cookies, limiter, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(orchestrator, cookies, users, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: middleware.RequestLogging(logger, middleware.SecurityHeaders(mux)),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.Server.Env),
			zap.String("llm_provider", cfg.LLM.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// loadCatalog prefers the prebuilt knowledge JSON and falls back to the raw
// CSV inputs.
func loadCatalog(cfg *config.Config, logger *zap.Logger) (*schema.Catalog, error) {
	if _, err := os.Stat(cfg.Schema.KnowledgePath); err == nil {
		logger.Info("loading schema knowledge", zap.String("path", cfg.Schema.KnowledgePath))
		return schema.LoadKnowledge(cfg.Schema.KnowledgePath)
	}
	logger.Info("building schema catalog from CSV", zap.String("dir", cfg.Schema.Dir))
	return schema.LoadCatalogCSV(cfg.Schema.Dir, logger)
}
