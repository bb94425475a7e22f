package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carepulse-systems/carepulse-stack/common/logging"
	busnats "github.com/carepulse-systems/carepulse-stack/common/messaging/nats"
	"github.com/carepulse-systems/carepulse-stack/common/resilience"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/channels"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/config"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/guardians"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger = logger.With(logging.Service("notify"))
	logging.SetDefault(logger)

	connString := cfg.Database.Postgres.DSN()

	logger.Info("running database migrations")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	retryOpts := resilience.RetryOptions{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialDelay:      cfg.Retry.InitialDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}
	breakerOpts := resilience.BreakerOptions{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	}

	providerChannels := []channels.Channel{
		channels.WrapResilient(channels.NewEmailChannel(cfg.Providers.EmailURL, cfg.Providers.Timeout), breakerOpts, retryOpts),
		channels.WrapResilient(channels.NewSMSChannel(cfg.Providers.SMSURL, cfg.Providers.Timeout), breakerOpts, retryOpts),
		channels.WrapResilient(channels.NewPushChannel(cfg.Providers.PushURL, cfg.Providers.Timeout), breakerOpts, retryOpts),
	}
	if cfg.Providers.TelegramBotToken != "" {
		providerChannels = append(providerChannels, channels.WrapResilient(
			channels.NewTelegramChannel(cfg.Providers.TelegramAPIBase, cfg.Providers.TelegramBotToken, cfg.Providers.Timeout),
			breakerOpts, retryOpts))
	} else {
		logger.Warn("telegram bot token not configured, telegram channel disabled")
	}

	directory := guardians.NewClient(cfg.Guardians.URL, cfg.Guardians.Timeout, breakerOpts, retryOpts)

	bus, err := busnats.NewJetStreamClient(busnats.Config{
		URL:           cfg.NATS.URL,
		Name:          "notify-service",
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := bus.EnsureStream(ctx, busnats.CareEventsStream); err != nil {
		log.Fatalf("Failed to ensure stream: %v", err)
	}
	if _, err := bus.EnsureQueue(ctx, busnats.CareEventsStream.Name, busnats.AlertCreatedQueue); err != nil {
		log.Fatalf("Failed to ensure alert created queue: %v", err)
	}

	svc := service.New(directory, providerChannels, repo, logger, cfg.Notify.FanOutLimit)

	stop, err := bus.Consume(ctx, busnats.AlertCreatedQueue.Name, svc.HandleAlertCreated)
	if err != nil {
		log.Fatalf("Failed to start alert created consumer: %v", err)
	}
	defer stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !bus.IsConnected() {
			http.Error(w, "bus disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("notify service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	_ = bus.Drain()

	logger.Info("stopped")
}
