// Package main is the entrypoint for the vince API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/vince/internal/api"
	"github.com/kiranshivaraju/vince/internal/api/handler"
	mw "github.com/kiranshivaraju/vince/internal/api/middleware"
	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/cache"
	"github.com/kiranshivaraju/vince/internal/config"
	"github.com/kiranshivaraju/vince/internal/metrics"
	"github.com/kiranshivaraju/vince/internal/service"
	"github.com/kiranshivaraju/vince/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "database", cfg.Database.Driver())
	for _, warning := range cfg.Warnings() {
		slog.Warn("configuration warning", "warning", warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open store (migrations are applied for Postgres)
	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database ready")

	// 3. Optional Redis cache
	var redisCache cache.Cache
	if cfg.Redis.Enabled() {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer rc.Close()

		if err := rc.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		redisCache = rc
		slog.Info("redis connected")
	}

	// 4. Services
	serviceKeys := service.NewServiceKeys(db, redisCache, cfg.ServiceKey.CacheTTL)
	if _, err := serviceKeys.Bootstrap(ctx, cfg.ServiceKey.Key); err != nil {
		return fmt.Errorf("bootstrap service credential: %w", err)
	}
	sessions := service.NewSessions(db, cfg.Auth)
	manager := service.NewManager(db)
	validator := service.NewValidator(db)

	if interval := cfg.Auth.SessionSweepInterval; interval > 0 {
		go sessions.RunSweeper(ctx, interval)
	}

	// 5. Build router with dependencies
	m := metrics.New()
	secure := cfg.Server.IsProduction()

	deps := api.Dependencies{
		Auth:          mw.NewAuth(serviceKeys, sessions),
		ValidateLimit: mw.NewRateLimit(redisCache, "validate", cfg.RateLimit.ValidatePerMinute, m),
		LoginLimit:    mw.LimitByIP("login", cfg.RateLimit.LoginPerMinute, m),
		Metrics:       m,

		HealthHandler:  healthHandler(cfg, db, redisCache),
		MetricsHandler: m.Handler(),

		ValidateHandler: handler.NewValidateHandler(validator, m),
		LoginHandler:    handler.NewLoginHandler(sessions, secure, m),
		LogoutHandler:   handler.NewLogoutHandler(sessions, secure),

		ListApplications:  handler.NewListApplicationsHandler(manager),
		CreateApplication: handler.NewCreateApplicationHandler(manager, m),
		GetApplication:    handler.NewGetApplicationHandler(manager),
		DeleteApplication: handler.NewDeleteApplicationHandler(manager, m),
		RegenerateSecret:  handler.NewRegenerateSecretHandler(manager, m),

		ListKeys:  handler.NewListKeysHandler(manager),
		CreateKey: handler.NewCreateKeyHandler(manager, m),
		GetKey:    handler.NewGetKeyHandler(manager),
		RotateKey: handler.NewRotateKeyHandler(manager, m),
		RevokeKey: handler.NewRevokeKeyHandler(manager, m),

		GetServiceKey:    handler.NewGetServiceKeyHandler(serviceKeys),
		RotateServiceKey: handler.NewRotateServiceKeyHandler(serviceKeys, m),
	}

	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// pinger is the part of the store and cache the health check needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports database and cache connectivity and which secrets
// are configured, never their values. Only the database is required; a
// failing cache is reported but keeps the service healthy.
func healthHandler(cfg *config.Config, db pinger, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping(r.Context()) == nil

		cacheStatus := "disabled"
		if c != nil {
			cacheStatus = "ok"
			if err := c.Ping(r.Context()); err != nil {
				cacheStatus = "degraded"
			}
		}

		body := map[string]any{
			"status":      "healthy",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"environment": cfg.Server.Env,
			"database": map[string]any{
				"provider":  cfg.Database.Driver(),
				"connected": dbConnected,
			},
			"cache": cacheStatus,
			"configuration": map[string]bool{
				"jwtConfigured":        cfg.Auth.JWTSecret != "",
				"adminConfigured":      cfg.Auth.AdminPassword != "" || cfg.Auth.AdminPasswordHash != "",
				"serviceKeyConfigured": cfg.ServiceKey.Key != "",
			},
		}

		if !dbConnected {
			body["status"] = "unhealthy"
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY",
				"Database connection failed", body)
			return
		}
		response.JSON(w, body)
	}
}
