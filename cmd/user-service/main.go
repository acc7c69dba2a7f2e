package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"github.com/ordersync/platform/internal/user/application"
	userhttp "github.com/ordersync/platform/internal/user/http"
	userpg "github.com/ordersync/platform/internal/user/postgres"
	"github.com/ordersync/platform/pkg/config"
	"github.com/ordersync/platform/pkg/httpapi"
	"github.com/ordersync/platform/pkg/logging"
	"github.com/ordersync/platform/pkg/metrics"
	"github.com/ordersync/platform/pkg/migrate"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/shutdown"
	"github.com/ordersync/platform/pkg/tracing"
)

func main() {
	cfg := config.Load("user-service")
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.TracingEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	if err := migrate.Up("migrations/user-service", cfg.DBConnectionString); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DBConnectionString)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := metrics.New("user-service")

	repo := userpg.NewRepository(log, pool)
	outboxStore := outbox.NewStore(pool, "userflow")
	svc := application.NewService(repo, outboxStore)
	handler := userhttp.NewHandler(log, svc, outboxStore)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.BootstrapEndpoints...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()
	publisher := outbox.NewPublisher(log, writer, cfg.DeadLetterTopic, cfg.MaxRetries)

	drainer := outbox.NewDrainer(log, outboxStore, publisher, outbox.Config{
		RelayID:       "user-service",
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval(),
		LockDuration:  cfg.LockDuration(),
		MaxRetries:    cfg.MaxRetries,
		ShutdownGrace: cfg.ShutdownGrace,
	})
	go func() {
		if err := drainer.Run(ctx); err != nil {
			log.Error("drainer stopped with error", "err", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(httpapi.RequestID)
	r.Use(httpapi.Tracing)
	r.Use(httpapi.Logging(log))
	if cfg.MetricsEnabled {
		r.Use(httpapi.Metrics(reg))
	}
	r.Use(httpapi.RateLimit(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst))
	r.Mount("/", handler.Routes())
	if cfg.MetricsEnabled {
		r.Handle("/metrics", reg.Handler())
	}

	srv := &http.Server{
		Addr:         cfg.ServerHost + ":" + strconv.Itoa(cfg.ServerPort),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("user-service shutdown complete")
}
