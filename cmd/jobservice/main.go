package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/application/apps"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/application/jobs"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/application/profile"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/bus"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/cache"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/config"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/consumer"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/idempotency"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/rabbitmq"
	infraredis "github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/redis"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/outbox"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/projection"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/retrypipe"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/sweeper"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/handlers"
	authmw "github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/middleware"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/transport/http/router"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Primary store.
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	{
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			zlog.Fatal().Err(err).Msg("db ping failed")
		}
	}
	repo := postgres.New(db)

	// Cache and keyed stores.
	redisClient, err := infraredis.New(cfg.Redis.URL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	cache.Configure(cfg.Cache.SearchTTL, cfg.Cache.DetailTTL, cfg.Cache.ProfileTTL)
	cacheBreaker := resilience.NewBreaker("cache", cfg.Breaker.WindowSize, cfg.Breaker.FailureThreshold, cfg.Breaker.WaitOpenCache)
	dbBreaker := resilience.NewBreaker("database", cfg.Breaker.WindowSize, cfg.Breaker.FailureThreshold, cfg.Breaker.WaitOpenDB)
	cacheLayer := cache.NewLayer(redisClient, cacheBreaker)
	limiter := resilience.NewRateLimiter(redisClient.Raw())
	idemStore := idempotency.NewStore(redisClient.Raw(), cfg.Redis.IdempotencyTTL)

	// Bus: RabbitMQ when configured, in-process otherwise (dev mode).
	var eventBus bus.Bus
	if cfg.Bus.URL != "" {
		b, err := rabbitmq.New(cfg.Bus.URL, cfg.Bus.Exchange, cfg.Bus.PrefetchStep)
		if err != nil {
			zlog.Fatal().Err(err).Msg("bus connect failed")
		}
		eventBus = b
	} else {
		zlog.Warn().Msg("RABBITMQ_URL empty: using in-process bus")
		eventBus = bus.NewMemory()
	}
	defer eventBus.Close()

	// Outbox publisher.
	pub := outbox.NewPublisher(repo, eventBus, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)
	pub.Start(ctx)

	// Application services.
	searchBulkhead := resilience.NewBulkhead("search", cfg.Bulkhead.SearchMax, cfg.Bulkhead.SearchMaxWait)
	appsSvc := apps.NewService(repo, dbBreaker, limiter, cfg.RateLimit.ApplyLimit, cfg.RateLimit.ApplyWindow)
	jobsSvc := jobs.NewService(repo, cacheLayer, dbBreaker, searchBulkhead)
	profileSvc := profile.NewService(repo, cacheLayer, dbBreaker)

	// Read-model consumers: application counters and cache invalidation.
	retryCfg := retrypipe.Config{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		Multiplier:      cfg.Retry.Multiplier,
		MaxInterval:     cfg.Retry.MaxInterval,
	}
	runtime := consumer.NewRuntime(eventBus, idemStore, retryCfg)
	projector := projection.NewProjector(repo, cacheLayer)
	if err := runtime.Subscribe(ctx, projector.CounterBinding()); err != nil {
		zlog.Fatal().Err(err).Msg("counter consumer start failed")
	}
	if err := runtime.Subscribe(ctx, projector.InvalidationBinding()); err != nil {
		zlog.Fatal().Err(err).Msg("invalidation consumer start failed")
	}

	// Scheduled work.
	sched := sweeper.NewScheduler()
	sched.Register(sweeper.Task{
		Name:     "job-expiration",
		Interval: cfg.Sweeper.ExpireInterval,
		Run: func(ctx context.Context) error {
			_, err := jobsSvc.ExpireOverdue(ctx, cfg.Sweeper.ExpireBatch)
			return err
		},
	})
	sched.Start(ctx)

	// Transport.
	httpHandler := router.New(router.Deps{
		Applications: handlers.NewApplicationsHandler(appsSvc),
		Jobs:         handlers.NewJobsHandler(jobsSvc),
		Profile:      handlers.NewProfileHandler(profileSvc),
		Health:       handlers.NewHealthHandler(db.PingContext, repo, cfg.Outbox.MaxAttempts),
		Auth:         authmw.NewAuth(cfg.Auth.JWTSecret, ""),
		Limiter:      limiter,
		Idempotency:  idemStore,
		Cfg:          cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      httpHandler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		zlog.Info().Str("addr", srv.Addr).Msg("jobservice listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("server crashed")
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("http shutdown incomplete")
	}
	sched.Stop()
	// Returning lets the defers run: bus close drains in-flight consumers,
	// then the stores close.
	zlog.Info().Msg("bye")
}
