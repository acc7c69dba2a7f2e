package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/ordersync/platform/internal/order/application"
	orderhttp "github.com/ordersync/platform/internal/order/http"
	orderkafka "github.com/ordersync/platform/internal/order/kafka"
	orderpg "github.com/ordersync/platform/internal/order/postgres"
	"github.com/ordersync/platform/internal/order/userclient"
	"github.com/ordersync/platform/pkg/config"
	"github.com/ordersync/platform/pkg/httpapi"
	"github.com/ordersync/platform/pkg/idempotency"
	"github.com/ordersync/platform/pkg/logging"
	"github.com/ordersync/platform/pkg/metrics"
	"github.com/ordersync/platform/pkg/migrate"
	"github.com/ordersync/platform/pkg/outbox"
	"github.com/ordersync/platform/pkg/shutdown"
	"github.com/ordersync/platform/pkg/tracing"
)

func main() {
	cfg := config.Load("order-service")
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.TracingEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	if err := migrate.Up("migrations/order-service", cfg.DBConnectionString); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DBConnectionString)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := metrics.New("order-service")

	repo := orderpg.NewRepository(log, pool)
	outboxStore := outbox.NewStore(pool, "orderflow")
	userClient := userclient.New(cfg.PeerServiceBaseURL, 5*time.Second)
	expiresIn := time.Duration(cfg.OrderExpiryDefaultMinutes) * time.Minute

	svc := application.NewService(repo, outboxStore, userClient, expiresIn)
	handler := orderhttp.NewHandler(log, svc, outboxStore)

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.BootstrapEndpoints...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()
	publisher := outbox.NewPublisher(log, writer, cfg.DeadLetterTopic, cfg.MaxRetries)

	drainer := outbox.NewDrainer(log, outboxStore, publisher, outbox.Config{
		RelayID:       "order-service",
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

	scanner := application.NewExpiryScanner(log, repo, outboxStore, 5*time.Second, 50)
	go func() {
		if err := scanner.Run(ctx); err != nil {
			log.Error("expiry scanner stopped with error", "err", err)
		}
	}()

	var idem *idempotency.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		idem = idempotency.NewStore(rdb, cfg.ConsumerGroup, 24*time.Hour)
	}

	reaction := application.NewReactionHandler(log, repo, outboxStore)
	subscribedTopics := cfg.SubscribedTopics
	if len(subscribedTopics) == 0 {
		subscribedTopics = []string{"users.status-changed"}
	}
	orderkafka.ProbeTopics(ctx, log, cfg.BootstrapEndpoints, subscribedTopics, 30*time.Second)
	consumer := orderkafka.NewConsumer(log, cfg.BootstrapEndpoints, subscribedTopics[0], cfg.ConsumerGroup, reaction, idem, reg)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped with error", "err", err)
			cancel()
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
	log.Info("order-service shutdown complete")
}
