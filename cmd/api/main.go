package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MushhX/RavixPteroX/internal/cache"
	"github.com/MushhX/RavixPteroX/internal/config"
	"github.com/MushhX/RavixPteroX/internal/database"
	"github.com/MushhX/RavixPteroX/internal/handlers"
	"github.com/MushhX/RavixPteroX/internal/jobs"
	"github.com/MushhX/RavixPteroX/internal/log"
	"github.com/MushhX/RavixPteroX/internal/plugin"
	"github.com/MushhX/RavixPteroX/internal/repository"
	"github.com/MushhX/RavixPteroX/internal/security"
	"github.com/MushhX/RavixPteroX/internal/server"
	"github.com/MushhX/RavixPteroX/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Configuration problems, missing secrets included, are fatal before
		// anything is listening.
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	if err := database.Migrate(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}
	if err := database.SeedAdmin(ctx, dbPool, cfg.Auth, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed admin user")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	userRepo := repository.NewUserRepository(dbPool)
	sessionRepo := repository.NewSessionRepository(dbPool)
	auditRepo := repository.NewAuditRepository(dbPool)

	codec := security.NewTokenCodec(cfg.Auth.SigningSecret, cfg.Auth.EncryptionSecret)
	authService := service.NewAuthService(userRepo, sessionRepo, auditRepo, codec, cfg.Auth, logger)
	panelService := service.NewPanelService(cfg.Panel, cfg.DemoMode(), logger)

	plugins := []plugin.Plugin{
		plugin.MarketplaceStub{},
	}

	handlerSet := handlers.NewHandlerSet(
		logger, cfg, authService, panelService, codec,
		userRepo, sessionRepo, auditRepo,
		dbPool, redisClient, plugins,
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(sessionRepo, auditRepo, cfg.Auth.RefreshTokenTTL, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
