package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/config"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/consumer"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/idempotency"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/postgres"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/rabbitmq"
	infraredis "github.com/Subhashree0011/event-driven-job-platform-sub000/internal/infrastructure/redis"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/notify"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/resilience"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/retrypipe"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Profiles live in the primary store; the notifier only reads them.
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	{
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			zlog.Fatal().Err(err).Msg("db ping failed")
		}
	}
	repo := postgres.New(db)

	redisClient, err := infraredis.New(cfg.Redis.URL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	idemStore := idempotency.NewStore(redisClient.Raw(), cfg.Redis.IdempotencyTTL)

	eventBus, err := rabbitmq.New(cfg.Bus.URL, cfg.Bus.Exchange, cfg.Bus.PrefetchStep)
	if err != nil {
		zlog.Fatal().Err(err).Msg("bus connect failed")
	}
	defer eventBus.Close()

	retryCfg := retrypipe.Config{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		Multiplier:      cfg.Retry.Multiplier,
		MaxInterval:     cfg.Retry.MaxInterval,
	}
	runtime := consumer.NewRuntime(eventBus, idemStore, retryCfg)
	resolver := notify.NewProfileResolver(repo)

	channels := []*notify.Channel{
		notify.NewChannel(notify.ChannelEmail, emailSender(), resolver,
			resilience.NewBulkhead("email", cfg.Bulkhead.EmailMax, cfg.Bulkhead.EmailMaxWait),
			resilience.NewBreaker("email", cfg.Breaker.WindowSize, cfg.Breaker.FailureThreshold, cfg.Breaker.WaitOpenChannels)),
		notify.NewChannel(notify.ChannelSMS, webhookSender(notify.ChannelSMS, "SMS_PROVIDER_URL", "SMS_PROVIDER_KEY"), resolver,
			resilience.NewBulkhead("sms", cfg.Bulkhead.SMSMax, cfg.Bulkhead.SMSMaxWait),
			resilience.NewBreaker("sms", cfg.Breaker.WindowSize, cfg.Breaker.FailureThreshold, cfg.Breaker.WaitOpenChannels)),
		notify.NewChannel(notify.ChannelPush, webhookSender(notify.ChannelPush, "PUSH_PROVIDER_URL", "PUSH_PROVIDER_KEY"), resolver,
			resilience.NewBulkhead("push", cfg.Bulkhead.PushMax, cfg.Bulkhead.PushMaxWait),
			resilience.NewBreaker("push", cfg.Breaker.WindowSize, cfg.Breaker.FailureThreshold, cfg.Breaker.WaitOpenChannels)),
	}
	concurrency := map[string]int{
		notify.ChannelEmail: cfg.Bulkhead.EmailMax,
		notify.ChannelSMS:   cfg.Bulkhead.SMSMax,
		notify.ChannelPush:  cfg.Bulkhead.PushMax,
	}
	for _, ch := range channels {
		if err := runtime.Subscribe(ctx, ch.Binding(concurrency[ch.Name()])); err != nil {
			zlog.Fatal().Err(err).Str("channel", ch.Name()).Msg("channel consumer start failed")
		}
	}

	pipeline := retrypipe.NewPipeline(eventBus, runtime, retryCfg)
	if err := pipeline.Start(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("retry pipeline start failed")
	}

	// Metrics endpoint; the notifier has no other HTTP surface.
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	port, _ := strconv.Atoi(cfg.HTTP.Port)
	srv := &http.Server{Addr: ":" + strconv.Itoa(port+1), Handler: mux}
	go func() {
		zlog.Info().Str("addr", srv.Addr).Msg("notifier metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("metrics server crashed")
		}
	}()

	zlog.Info().Msg("notifier running")
	<-ctx.Done()
	zlog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// emailSender builds the SMTP sender, or a log stand-in when credentials are
// absent (local dev).
func emailSender() notify.Sender {
	cfg := notify.SMTPConfig{
		Host:     getenv("SMTP_HOST"),
		Port:     atoi(getenv("SMTP_PORT"), 587),
		Username: getenv("SMTP_USERNAME"),
		Password: getenv("SMTP_PASSWORD"),
		From:     getenv("SMTP_FROM"),
		FromName: getenv("SMTP_FROM_NAME"),
	}
	s, err := notify.NewSMTPSender(cfg)
	if err != nil {
		zlog.Warn().Err(err).Msg("smtp not configured, logging emails instead")
		return notify.NewLogSender(notify.ChannelEmail)
	}
	return s
}

func webhookSender(channel, urlKey, apiKeyKey string) notify.Sender {
	s, err := notify.NewWebhookSender(channel, getenv(urlKey), getenv(apiKeyKey))
	if err != nil {
		zlog.Warn().Err(err).Str("channel", channel).Msg("provider not configured, logging instead")
		return notify.NewLogSender(channel)
	}
	return s
}

func getenv(k string) string { return os.Getenv(k) }

func atoi(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
