package commit

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// OutboxWorker is the background loop §4.4 describes: at a configurable
// interval, claim up to a batch limit of due PENDING/PROCESSING rows,
// publish each sequentially, and advance its status. running enforces
// the "single active instance per process" requirement with a
// lock-free CAS rather than a mutex, since the only thing being guarded
// is "is a tick already in flight" — a boolean, not a critical section.
type OutboxWorker struct {
	store      OutboxStore
	publisher  EventPublisher
	metrics    MetricsRecorder
	log        *zap.Logger
	interval   time.Duration
	batchLimit int
	maxRetries int
	running    atomic.Bool
}

// NewOutboxWorker wires a publisher loop. interval defaults to 5s and
// batchLimit to 100 when zero, matching §4.4's stated defaults.
func NewOutboxWorker(store OutboxStore, publisher EventPublisher, metrics MetricsRecorder, log *zap.Logger, interval time.Duration, batchLimit, maxRetries int) *OutboxWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		store:      store,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
		interval:   interval,
		batchLimit: batchLimit,
		maxRetries: maxRetries,
	}
}

// Run ticks until ctx is cancelled. Safe to call from exactly one
// goroutine per process; calling it concurrently from a second goroutine
// is harmless because of the running guard, but wasteful — ops should
// run one outbox worker per deployment, which cmd/outboxworker does.
func (w *OutboxWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *OutboxWorker) tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	defer w.running.Store(false)

	events, err := w.store.ClaimBatch(ctx, w.batchLimit)
	if err != nil {
		w.log.Error("claiming outbox batch", zap.Error(err))
		w.metrics.IncError("outbox", "claim")
		return
	}
	w.metrics.SetOutboxDepth(float64(len(events)))

	for _, event := range events {
		if err := w.publisher.Publish(ctx, event); err != nil {
			w.fail(ctx, event, err)
			continue
		}
		if err := w.store.MarkCompleted(ctx, event.ID); err != nil {
			w.log.Error("marking outbox event completed", zap.String("id", event.ID), zap.Error(err))
		}
	}
}

func (w *OutboxWorker) fail(ctx context.Context, event OutboxEvent, cause error) {
	retryCount := event.RetryCount + 1
	w.metrics.IncError("outbox", "publish")

	if retryCount >= w.maxRetries {
		if err := w.store.MarkDeadLetter(ctx, event.ID, cause.Error()); err != nil {
			w.log.Error("dead-lettering outbox event", zap.String("id", event.ID), zap.Error(err))
		}
		w.log.Error("outbox event exhausted retries", zap.String("id", event.ID), zap.Error(cause))
		return
	}

	nextRetryAt := time.Now().Add(time.Duration(1<<retryCount) * time.Second)
	if err := w.store.MarkFailed(ctx, event.ID, retryCount, nextRetryAt, cause.Error()); err != nil {
		w.log.Error("marking outbox event failed", zap.String("id", event.ID), zap.Error(err))
	}
}
