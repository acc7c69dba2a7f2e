// Package txwatchdog decouples a caller's cancellation from an in-flight
// commit, per spec.md's "Cancellation vs durability" rule (§9): a client
// disconnect must never tear a domain-row-plus-outbox-row write that is
// already underway, since the pair must commit or roll back together. C4's
// command handlers run the write against a fixed-deadline context instead
// of the caller's own, so the write finishes (or times out) on its own
// terms; the caller's context is only consulted afterward, to decide
// whether the outcome can still be reported to them.
package txwatchdog

import (
	"context"
	"time"

	"github.com/ordersync/platform/pkg/platformerrors"
)

// DefaultTimeout is spec.md §5/§9's 15-second commit watchdog.
const DefaultTimeout = 15 * time.Second

// Run executes fn against a context detached from ctx's cancellation but
// bounded by timeout, so a brief client disconnect can never abort fn
// partway through. If ctx had already ended (caller cancelled, or the
// process is shutting down) by the time fn returns, Run reports
// ErrCancelled instead of fn's own result — the write still durably
// committed or rolled back on its own, but the original caller is gone, so
// the transport layer should answer 499 rather than fn's result.
func Run(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	watchdogCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := fn(watchdogCtx)

	if ctx.Err() != nil {
		return platformerrors.ErrCancelled
	}
	return err
}
