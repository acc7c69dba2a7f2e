package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ordersync/platform/internal/relay"
	"github.com/ordersync/platform/pkg/config"
	"github.com/ordersync/platform/pkg/logging"
	"github.com/ordersync/platform/pkg/shutdown"
)

// coreTopics is the canonical topic set of spec.md §6, plus the
// dead-letter topic C8 also fans out.
func coreTopics(deadLetterTopic string) []string {
	return []string{
		"users.created",
		"users.status-changed",
		"orders.created",
		"orders.cancelled",
		deadLetterTopic,
	}
}

func main() {
	cfg := config.Load("fanout-relay")
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	hub := relay.NewHub(log)

	for _, topic := range coreTopics(cfg.DeadLetterTopic) {
		fanout := relay.NewFanout(log, cfg.BootstrapEndpoints, topic, hub)
		go func() {
			if err := fanout.Run(ctx); err != nil {
				log.Error("fanout stopped with error", "topic", topic, "err", err)
			}
		}()
	}

	r := chi.NewRouter()
	r.Get("/ws", relay.Handler(log, hub))

	srv := &http.Server{
		Addr:         cfg.ServerHost + ":" + strconv.Itoa(cfg.ServerPort),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived.
	}

	go func() {
		log.Info("relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("fanout-relay shutdown complete")
}
