package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentra-admin/sentra-admin/internal/app"
	"github.com/sentra-admin/sentra-admin/internal/auth"
	"github.com/sentra-admin/sentra-admin/internal/observability"
	"github.com/sentra-admin/sentra-admin/internal/permission"
	"github.com/sentra-admin/sentra-admin/internal/pipeline"
	"github.com/sentra-admin/sentra-admin/internal/platform/cache"
	"github.com/sentra-admin/sentra-admin/internal/platform/db"
	"github.com/sentra-admin/sentra-admin/internal/session"
	"github.com/sentra-admin/sentra-admin/internal/signature"
	"github.com/sentra-admin/sentra-admin/internal/token"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	registry := session.NewPGRegistry(pool)

	tokens := token.NewService(token.Config{
		Secret:            cfg.JWTSecret,
		TTL:               cfg.TokenTTL,
		RefreshTTL:        cfg.RefreshTTL,
		GracePeriod:       cfg.RefreshGrace,
		Issuer:            cfg.JWTIssuer,
		Audience:          cfg.JWTAudience,
		SessionManagement: cfg.SessionBinding,
		SkipRoutes:        cfg.AuthSkipRoutes,
	}, registry)

	signatures := signature.NewVerifier(signature.Config{
		Enabled:         cfg.SignEnabled,
		Timeout:         cfg.SignTimeout,
		Secrets:         cfg.SignSecrets,
		SkipRoutes:      cfg.SignSkipRoutes,
		MinSecretLength: cfg.SignMinSecretLength,
	})

	var permCache *permission.Cache
	if cfg.PermCacheEnabled {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		permCache = permission.NewCache(redisClient, cfg.PermCacheTTL)
	}

	permissions := permission.NewResolver(permission.NewPGStore(pool), permCache, permission.Config{
		SuperAdminIDs: cfg.SuperAdminIDs,
		SkipRoutes:    cfg.PermSkipRoutes,
	})

	metrics := observability.NewMetrics()
	gatePipeline := pipeline.New(logger, signatures, tokens, permissions).WithMetrics(metrics)

	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(pool)), tokens)

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		AuthHandler: authHandler,
		Pipeline:    gatePipeline,
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
