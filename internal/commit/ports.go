package commit

import (
	"context"
	"time"
)

// ResultStore is the transactional persistence collaborator. Write
// performs the whole §4.4 transaction: upserting calculation_results,
// upserting calc_audit and its groups, and inserting the PENDING
// outbox_events row, all atomically. Lookup is the idempotency check —
// a hit by checksum means Write must not run again.
type ResultStore interface {
	Lookup(ctx context.Context, checksum string) (WriteInput, bool, error)
	Write(ctx context.Context, input WriteInput) error
}

// AdvisoryLocker serialises commit transactions for the same
// proposalId, per §4.4's "per-proposal advisory lock acquired before
// the transaction begins and released after commit".
type AdvisoryLocker interface {
	WithLock(ctx context.Context, proposalID string, fn func(ctx context.Context) error) error
}

// OutboxStore is the collaborator the background outbox publisher loop
// uses. ClaimBatch must use FOR UPDATE SKIP LOCKED so concurrent
// publisher instances never double-publish the same row.
type OutboxStore interface {
	ClaimBatch(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, errMsg string) error
	MarkDeadLetter(ctx context.Context, id string, errMsg string) error
}

// EventPublisher delivers one outbox event to the message broker,
// partitioned by event.AggregateID.
type EventPublisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

// MetricsRecorder is the §5 "metrics aggregates" collaborator: stage
// latencies, error counters, and outbox depth, recorded under
// per-metric locks on the concrete implementation's side.
type MetricsRecorder interface {
	ObserveStageLatency(stage string, durationMs int64)
	IncError(stage string, kind string)
	SetOutboxDepth(depth float64)
}
