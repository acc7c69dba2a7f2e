package outbox

import (
	"context"
	"log/slog"
	"time"
)

// DrainStore is the subset of Store the Drainer needs, kept narrow so tests
// can substitute a fake instead of a real Postgres pool.
type DrainStore interface {
	AcquireBatch(ctx context.Context, relayID string, n int, leaseDuration time.Duration, maxRetries int) ([]Row, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextRetryCount int, errText string, permanent bool) error
}

// BusPublisher is the subset of Publisher the Drainer needs.
type BusPublisher interface {
	Publish(ctx context.Context, row Row) Outcome
}

// Drainer is the C3 periodic worker: acquire a batch via Store, publish
// each row via Publisher, settle each outcome back into Store. One instance
// runs per service process; relayID distinguishes instances sharing a
// table, which AcquireBatch's row lock makes safe.
type Drainer struct {
	log       *slog.Logger
	store     DrainStore
	publisher BusPublisher

	relayID       string
	batchSize     int
	pollInterval  time.Duration
	lockDuration  time.Duration
	maxRetries    int
	shutdownGrace time.Duration
}

// Config collects the Drainer's tunables. RelayID is set by each binary;
// the others come from pkg/config.
type Config struct {
	RelayID       string
	BatchSize     int
	PollInterval  time.Duration
	LockDuration  time.Duration
	MaxRetries    int
	ShutdownGrace time.Duration
}

// NewDrainer builds a Drainer. Defaults mirror spec.md §4.3/§6 when zero
// values are passed: batch 100, poll 500ms, lock 5s, maxRetries 5, grace 5s.
func NewDrainer(log *slog.Logger, store DrainStore, publisher BusPublisher, cfg Config) *Drainer {
	d := &Drainer{
		log:           log,
		store:         store,
		publisher:     publisher,
		relayID:       cfg.RelayID,
		batchSize:     cfg.BatchSize,
		pollInterval:  cfg.PollInterval,
		lockDuration:  cfg.LockDuration,
		maxRetries:    cfg.MaxRetries,
		shutdownGrace: cfg.ShutdownGrace,
	}
	if d.batchSize <= 0 {
		d.batchSize = 100
	}
	if d.pollInterval <= 0 {
		d.pollInterval = 500 * time.Millisecond
	}
	if d.lockDuration <= 0 {
		d.lockDuration = 5 * time.Second
	}
	if d.maxRetries <= 0 {
		d.maxRetries = 5
	}
	if d.shutdownGrace <= 0 {
		d.shutdownGrace = 5 * time.Second
	}
	return d
}

// Run loops Idle→Acquiring→Publishing→Settling→Idle until ctx is cancelled.
// Cancellation is only observed between cycles: a cycle already in progress
// runs through its whole batch, but with the cancelled ctx, so a publish or
// settle call that sees the cancellation fails and its row stays pending
// (or leased until its lease lapses). Run then runs one final cycle bounded
// by the shutdown grace (drainOnShutdown) and returns.
func (d *Drainer) Run(ctx context.Context) error {
	t := time.NewTicker(d.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("outbox drainer stopping", "relay_id", d.relayID)
			return d.drainOnShutdown()
		case <-t.C:
			d.runCycle(ctx)
		}
	}
}

// drainOnShutdown runs one last cycle against a fresh context bounded by
// shutdownGrace, so pending rows with no live lease get a chance to be
// published before exit. Rows still leased by the interrupted cycle are not
// acquired here.
func (d *Drainer) drainOnShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.shutdownGrace)
	defer cancel()
	d.runCycle(ctx)
	return nil
}

func (d *Drainer) runCycle(ctx context.Context) {
	rows, err := d.store.AcquireBatch(ctx, d.relayID, d.batchSize, d.lockDuration, d.maxRetries)
	if err != nil {
		d.log.Error("outbox drainer acquire failed", "err", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	for _, row := range rows {
		d.settleRow(ctx, row)
	}
}

// settleRow publishes and settles a single row, recovering from a panic so
// one bad row can never abort the cycle (§4.3 point 4).
func (d *Drainer) settleRow(ctx context.Context, row Row) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("outbox drainer row panicked", "row_id", row.ID, "panic", r)
			nextRetry := row.RetryCount + 1
			_ = d.store.MarkFailed(ctx, row.ID, nextRetry, "panic during publish", nextRetry > d.maxRetries)
		}
	}()

	outcome := d.publisher.Publish(ctx, row)
	switch outcome {
	case Success:
		if err := d.store.MarkSent(ctx, row.ID); err != nil {
			d.log.Error("outbox drainer mark sent failed", "row_id", row.ID, "err", err)
		}
	case TransientFailure:
		nextRetry := row.RetryCount + 1
		if err := d.store.MarkFailed(ctx, row.ID, nextRetry, "transient publish failure", false); err != nil {
			d.log.Error("outbox drainer mark failed (transient) error", "row_id", row.ID, "err", err)
		}
	case PermanentFailure:
		nextRetry := row.RetryCount + 1
		if err := d.store.MarkFailed(ctx, row.ID, nextRetry, "dead-lettered", true); err != nil {
			d.log.Error("outbox drainer mark failed (permanent) error", "row_id", row.ID, "err", err)
		}
	}
}
