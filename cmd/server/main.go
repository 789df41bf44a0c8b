package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"skillhub/internal/audit"
	authservice "skillhub/internal/auth"
	"skillhub/internal/blob"
	"skillhub/internal/database"
	"skillhub/internal/downloads"
	jwttoken "skillhub/internal/jwt_token"
	"skillhub/internal/moderation"
	"skillhub/internal/platform/config"
	"skillhub/internal/platform/httpserver"
	"skillhub/internal/platform/logger"
	platformredis "skillhub/internal/platform/redis"
	"skillhub/internal/ratelimit"
	"skillhub/internal/registry/service"
	"skillhub/internal/registry/store"
	httptransport "skillhub/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle: HTTP server plus
// the dedupe prune loop, both shut down on SIGINT/SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores: PostgreSQL when configured, in-memory otherwise (local dev).
	var stores store.Stores
	var auditStore audit.Store
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("database connect failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			log.Error("database migration failed", "error", err)
			os.Exit(1)
		}
		stores = store.NewPostgres(db).Stores()
		auditStore = audit.NewPostgresStore(db)
	} else {
		log.Warn("no DATABASE_URL set, using in-memory stores")
		stores = store.NewMemory().Stores()
		auditStore = audit.NewInMemoryStore()
	}

	// Rate limiting: shared Redis counters when configured, per-process
	// otherwise.
	var limiter ratelimit.Limiter = ratelimit.NewInMemoryLimiter()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient)
	}

	blobStore, err := blob.NewFromConfig(ctx, cfg.Blob)
	if err != nil {
		log.Error("blob store init failed", "error", err)
		os.Exit(1)
	}

	registry := service.New(stores, auditStore, log, cfg)
	authSvc := authservice.New(stores, auditStore, log)
	moderationSvc := moderation.New(registry, auditStore, log)

	downloadMetrics := downloads.NewMetrics()
	downloadSvc := downloads.NewService(registry, limiter, downloads.NewIPHasher(cfg.IPHashSalt), downloadMetrics, log, cfg.Downloads)
	downloadHandler := downloads.NewHandler(downloadSvc, blobStore, log)

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "skillhub")
	api := httptransport.NewAPI(registry, authSvc, moderationSvc, tokens, log)
	router := httptransport.NewRouter(api, downloadHandler, tokens, log)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := downloadSvc.RunPruneLoop(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
