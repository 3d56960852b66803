package commit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/domain/canonical"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
	infracache "github.com/Victor-armando18/pricing-engine/internal/infrastructure/cache"
)

// Stage is the commit pipeline's single entrypoint: idempotency check,
// advisory-locked transactional write, and best-effort webhook fan-out
// (§4.4). The background outbox publisher that actually delivers events
// to the broker lives separately, in OutboxWorker — Stage.Commit only
// ever inserts the PENDING row.
type Stage struct {
	store    ResultStore
	locker   AdvisoryLocker
	cache    *infracache.LRU[Outcome]
	webhooks *WebhookNotifier
	metrics  MetricsRecorder
	log      *zap.Logger
}

// NewStage wires a commit pipeline. cacheTTL governs the in-process L1
// result cache keyed by checksum (§4.4, "after commit the stage caches
// the result by checksum") — separate from, and faster than, the
// database-backed idempotency check in ResultStore.Lookup.
func NewStage(store ResultStore, locker AdvisoryLocker, webhooks *WebhookNotifier, metrics MetricsRecorder, log *zap.Logger, cacheCapacity int, cacheTTL time.Duration) *Stage {
	return &Stage{
		store:    store,
		locker:   locker,
		cache:    infracache.New[Outcome](cacheCapacity, cacheTTL),
		webhooks: webhooks,
		metrics:  metrics,
		log:      log,
	}
}

// Commit runs §4.4 for one computed Result and returns the outcome that
// actually landed — the caller's own Result on a fresh write, or the
// previously committed one on an idempotent replay.
func (s *Stage) Commit(ctx context.Context, req Request) (Outcome, error) {
	started := time.Now()
	checksum := req.Result.Checksum
	if checksum == "" {
		return Outcome{}, pricingerr.New(pricingerr.InvalidInput, "result checksum is required for commit")
	}

	if cached, ok := s.cache.Get(checksum); ok {
		s.metrics.ObserveStageLatency("commit", time.Since(started).Milliseconds())
		return Outcome{Result: cached.Result, Idempotent: true}, nil
	}

	input, err := buildWriteInput(req)
	if err != nil {
		return Outcome{}, pricingerr.Wrap(pricingerr.Internal, "encoding outbox payload", err)
	}

	var outcome Outcome
	lockErr := s.locker.WithLock(ctx, req.ProposalID, func(ctx context.Context) error {
		existing, found, err := s.store.Lookup(ctx, checksum)
		if err != nil {
			return pricingerr.Wrap(pricingerr.DatabaseError, "idempotency lookup", err)
		}
		if found {
			outcome = Outcome{Result: existing.Audit.Result, Idempotent: true}
			return nil
		}
		if err := s.store.Write(ctx, input); err != nil {
			return pricingerr.Wrap(pricingerr.DatabaseError, "committing calculation result", err)
		}
		outcome = Outcome{Result: req.Result, Idempotent: false}
		return nil
	})
	if lockErr != nil {
		s.metrics.IncError("commit", string(pricingerr.KindOf(lockErr)))
		return Outcome{}, lockErr
	}

	s.cache.Put(checksum, outcome)
	s.metrics.ObserveStageLatency("commit", time.Since(started).Milliseconds())

	if !outcome.Idempotent {
		s.log.Info("committed calculation result",
			zap.String("proposalId", req.ProposalID), zap.String("checksum", checksum))
		s.webhooks.NotifyAsync(context.WithoutCancel(ctx), "calculation.completed", input.Event.Payload, map[string]any{
			"engineVersion": req.EngineVersion,
			"processingMs":  req.Timings.TotalMs,
		})
	}

	return outcome, nil
}

func buildWriteInput(req Request) (WriteInput, error) {
	payload, err := canonical.Encode(req.Result)
	if err != nil {
		return WriteInput{}, err
	}

	now := time.Now()
	event := OutboxEvent{
		EventType:   "calculation.completed",
		AggregateID: req.ProposalID,
		Payload:     payload,
		Metadata: map[string]any{
			"checksum":  req.Result.Checksum,
			"timestamp": now.Format(time.RFC3339),
		},
		Status:      OutboxPending,
		NextRetryAt: now,
		CreatedAt:   now,
	}

	audit := AuditRecord{
		ProposalID:    req.ProposalID,
		Tenant:        req.Tenant,
		Version:       req.Version,
		StartedAt:     req.StartedAt,
		FinishedAt:    req.FinishedAt,
		Timings:       req.Timings,
		Result:        req.Result,
		EngineVersion: req.EngineVersion,
	}

	return WriteInput{ProposalID: req.ProposalID, Audit: audit, Event: event}, nil
}
