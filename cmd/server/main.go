package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sponsorlink/internal/admintoken"
	"sponsorlink/internal/platform/config"
	"sponsorlink/internal/platform/httpserver"
	"sponsorlink/internal/platform/logger"
	"sponsorlink/internal/platform/metrics"
	"sponsorlink/internal/platform/postgres"
	platformredis "sponsorlink/internal/platform/redis"
	"sponsorlink/internal/ratelimit"
	"sponsorlink/internal/report"
	"sponsorlink/internal/session"
	"sponsorlink/internal/sponsorship"
	httptransport "sponsorlink/internal/transport/http"
	"sponsorlink/internal/update"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages. Store clients are
// constructed exactly once here and injected; nothing holds module-level
// state.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Env)
	m := metrics.New()

	ctx := context.Background()

	var (
		sponsorshipStore sponsorship.Store
		updateStore      update.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if cfg.Env != "production" {
			if err := postgres.EnsureSchema(ctx, db); err != nil {
				log.Error("schema setup failed", "error", err)
				os.Exit(1)
			}
		}
		sponsorshipStore = sponsorship.NewPostgres(db)
		updateStore = update.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		sponsorshipStore = sponsorship.NewInMemoryStore()
		updateStore = update.NewInMemoryStore()
	}

	var bucketStore ratelimit.BucketStore = ratelimit.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		bucketStore = ratelimit.NewRedisStore(redisClient.Client)
		log.Info("rate limiting backed by redis")
	}

	sponsorships := sponsorship.NewService(sponsorshipStore, log)
	updates := update.NewService(updateStore, sponsorships, cfg.RequestCooldown, log, m)
	sessions := session.New(cfg.SessionSigningKey, cfg.SessionTTL, cfg.Env == "production", sponsorships, log, m)
	adminAuth := admintoken.New(cfg.AdminToken)
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, admin endpoints will reject every request")
	}

	limiter := ratelimit.NewLimiter(bucketStore, cfg.RateLimit)
	rateLimits := ratelimit.NewMiddleware(limiter, log, m,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled))

	reporter := report.New(updates, sponsorships, cfg.OverdueAfter, log, m)
	if err := reporter.Start(cfg.OverdueSchedule); err != nil {
		log.Error("overdue reporter schedule invalid", "error", err)
		os.Exit(1)
	}
	defer reporter.Stop()

	handler := httptransport.NewHandler(log, m, sponsorships, updates, sessions, adminAuth, rateLimits)
	router := httptransport.NewRouter(handler)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting sponsorlink", "addr", cfg.Addr, "env", cfg.Env)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
