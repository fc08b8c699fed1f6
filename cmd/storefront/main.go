// Package main запускает HTTP-сервер витрины магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/config"
	"github.com/mmeshcher/storefront/internal/handler"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := openRepository(cfg, sugar)
	if err != nil {
		sugar.Fatalw("session storage initialization error", "error", err.Error())
	}

	api := backend.NewClient(backend.HostResolver{
		Explicit:             cfg.APIURL,
		ProductionHostSuffix: cfg.ProductionHostSuffix,
		ProductionURL:        cfg.ProductionAPIURL,
		DevelopmentURL:       cfg.DevAPIURL,
		FallbackHost:         cfg.PublicHost,
	})

	svc := service.NewService(repo, api, logger, cfg.ChatReplyDelay)
	defer svc.Close()

	sessions := middleware.NewSessionMiddleware(cfg.SessionSecret, cfg.SessionTTL)
	if cfg.SessionSecret == "" {
		sugar.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
	}

	h := handler.NewHandler(svc, logger, sessions)

	r := h.SetupRouter(handler.RouterConfig{
		StaticDir:      cfg.StaticDir,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		TrustProxy:     cfg.TrustProxy,
	})

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая очистка устаревших сессий и разговоров
	g.Go(func() error {
		svc.StartSessionCleanup(ctx, cfg.SessionTTL)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress, "static", cfg.StaticDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openRepository выбирает хранилище сессий: Redis, затем PostgreSQL, иначе память процесса.
func openRepository(cfg *config.Config, sugar *zap.SugaredLogger) (service.Repository, error) {
	switch {
	case cfg.RedisURL != "":
		sugar.Infow("using redis session storage")
		return repository.NewRedisRepository(cfg.RedisURL, cfg.SessionTTL)
	case cfg.DatabaseURI != "":
		sugar.Infow("using postgres session storage")
		return repository.NewPostgresRepository(cfg.DatabaseURI)
	default:
		sugar.Infow("using in-memory session storage")
		return repository.NewMemoryRepository(), nil
	}
}
