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

	"github.com/carepulse-systems/carepulse-stack/common/logging"
	busnats "github.com/carepulse-systems/carepulse-stack/common/messaging/nats"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/config"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/handlers"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logger = logger.With(logging.Service("dispatch"))
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

	bus, err := busnats.NewJetStreamClient(busnats.Config{
		URL:           cfg.NATS.URL,
		Name:          "dispatch-service",
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
	if _, err := bus.EnsureQueue(ctx, busnats.CareEventsStream.Name, busnats.DispatcherRiskQueue); err != nil {
		log.Fatalf("Failed to ensure dispatcher risk queue: %v", err)
	}

	svc := service.New(repo, bus, logger, cfg.Dispatch.PriorityThreshold)

	stopRisk, err := bus.Consume(ctx, busnats.DispatcherRiskQueue.Name, svc.HandleRiskAlert)
	if err != nil {
		log.Fatalf("Failed to start risk alert consumer: %v", err)
	}
	defer stopRisk()

	h := handlers.NewHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/calls", h.Calls)
	mux.HandleFunc("/api/v1/calls/stats", h.Stats)
	mux.HandleFunc("/api/v1/calls/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/assign"):
			h.Assign(w, r)
		case strings.HasSuffix(r.URL.Path, "/status"):
			h.UpdateStatus(w, r)
		default:
			h.GetCall(w, r)
		}
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
		logger.Info("dispatch service listening", "addr", srv.Addr)
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
