// Package shutdown wires OS signals into context cancellation for the
// three long-running binaries (user-service, order-service, fanout-relay).
// Unlike the teacher's single-service original, every one of them races at
// least one background worker against the HTTP server (the outbox
// drainer, and for order-service also the expiry scanner and the
// cross-service consumer), so WithSignals logs which signal it caught:
// with several goroutines all reacting to the same cancellation, "why did
// this process shut down" is worth a log line rather than silence.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals returns a context cancelled on SIGINT or SIGTERM. log may be
// nil, in which case the caught signal is simply not logged.
func WithSignals(ctx context.Context, log *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-ch
		if log != nil {
			log.Info("shutdown signal received", "signal", sig.String())
		}
		cancel()
	}()

	return ctx, cancel
}
