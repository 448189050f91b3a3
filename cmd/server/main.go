package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/lmsforum/internal/bootstrap"
	"anoa.com/lmsforum/internal/config"
	"anoa.com/lmsforum/internal/middleware"
	searchService "anoa.com/lmsforum/internal/modules/search/service"
	"anoa.com/lmsforum/internal/server"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/database"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.IsDevelopment()})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatalw("failed to connect database", "error", err)
	}
	if err := bootstrap.Migrate(db); err != nil {
		zlog.Fatalw("migration failed", "error", err)
	}

	cipher, err := crypto.New(cfg.Secret)
	if err != nil {
		zlog.Fatalw("failed to initialize cipher", "error", err)
	}
	store := docstore.New(db)

	ctx := context.Background()
	if cfg.LegacyUpgrade {
		if _, err := bootstrap.UpgradeLegacySchema(ctx, store, cipher); err != nil {
			zlog.Fatalw("legacy schema upgrade failed", "error", err)
		}
	}
	if cfg.IsDevelopment() {
		if err := bootstrap.SeedWelcomeThread(ctx, store, cipher, "general"); err != nil {
			zlog.Fatalw("failed to seed welcome thread", "error", err)
		}
	}

	redisClient := connectRedis(ctx, cfg, zlog)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var search searchService.MeiliSearchService
	if cfg.MeiliSearchHost != "" {
		search = searchService.NewMeiliSearchService(meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey)))
	} else {
		zlog.Info("MEILISEARCH_HOST not set, thread search disabled")
	}

	limiter := middleware.NewIPRateLimiter(cfg.IPRateLimitRPS, cfg.IPRateLimitBurst)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)
	defer close(stopCleanup)

	srv := server.NewServer(server.Deps{
		Config:      cfg,
		Store:       store,
		Cipher:      cipher,
		RedisClient: redisClient,
		Search:      search,
		Limiter:     limiter,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		zlog.Infow("server listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatalw("server exited with error", "error", err)
		}
	}()

	<-quit
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("server forced to shutdown", "error", err)
	}
}

// connectRedis returns nil when REDIS_URL is unset or unreachable; cooldowns
// and realtime updates are then disabled.
func connectRedis(ctx context.Context, cfg *config.Config, zlog *zap.SugaredLogger) *redis.Client {
	if cfg.RedisURL == "" {
		zlog.Info("REDIS_URL not set, rate limits and realtime updates disabled")
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zlog.Fatalw("invalid REDIS_URL", "error", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zlog.Warnw("redis unreachable, continuing without it", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
