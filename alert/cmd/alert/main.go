package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carepulse-systems/carepulse-stack/alert/internal/config"
	"github.com/carepulse-systems/carepulse-stack/alert/internal/handlers"
	"github.com/carepulse-systems/carepulse-stack/alert/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/alert/internal/service"
	"github.com/carepulse-systems/carepulse-stack/common/dedupe"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	busnats "github.com/carepulse-systems/carepulse-stack/common/messaging/nats"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger = logger.With(logging.Service("alert"))
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

	var deduper dedupe.Deduper = dedupe.Noop{}
	if cfg.Redis.Enabled {
		redisDeduper, err := dedupe.NewRedisDeduper(cfg.Redis.URL, cfg.Redis.DedupeTTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisDeduper.Close()
		deduper = redisDeduper
	}

	bus, err := busnats.NewJetStreamClient(busnats.Config{
		URL:           cfg.NATS.URL,
		Name:          "alert-service",
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
	if _, err := bus.EnsureQueue(ctx, busnats.CareEventsStream.Name, busnats.RiskAlertQueue); err != nil {
		log.Fatalf("Failed to ensure risk alert queue: %v", err)
	}
	if _, err := bus.EnsureQueue(ctx, busnats.CareEventsStream.Name, busnats.GeofenceViolationQueue); err != nil {
		log.Fatalf("Failed to ensure geofence queue: %v", err)
	}

	svc := service.New(repo, bus, deduper, logger)

	stopRisk, err := bus.Consume(ctx, busnats.RiskAlertQueue.Name, svc.HandleRiskAlert)
	if err != nil {
		log.Fatalf("Failed to start risk alert consumer: %v", err)
	}
	defer stopRisk()

	stopGeofence, err := bus.Consume(ctx, busnats.GeofenceViolationQueue.Name, svc.HandleGeofenceViolation)
	if err != nil {
		log.Fatalf("Failed to start geofence consumer: %v", err)
	}
	defer stopGeofence()

	h := handlers.NewHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/alerts", h.ListAlerts)
	mux.HandleFunc("/api/v1/alerts/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/status") {
			h.UpdateStatus(w, r)
			return
		}
		h.GetAlert(w, r)
	})
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
		logger.Info("alert service listening", "addr", srv.Addr)
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
