// Package orchestrator wires the three pipeline stages — preparation,
// compute, commit — into the single call the external interfaces (§6)
// expose, and owns the concerns that belong to none of the three stages
// individually: the wall-clock ceiling around the pure compute stage,
// panic recovery at the pipeline boundary, and the phase-timing
// breakdown returned alongside every result. Grounded on the teacher's
// own usecase/runengine.Usecase, which plays exactly this role for its
// three-phase pipeline (fetch, evaluate, aggregate).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/compute"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

// EngineVersion is stamped onto every calc_audit row and outbox event
// (§6). It changes only when the compute stage's rounding or allocation
// rules change in a way that could shift a previously committed result.
const EngineVersion = "pricing-engine/1.0.0"

// MetricsRecorder is the shared metrics contract every stage reports
// through; commit.MetricsRecorder satisfies it already.
type MetricsRecorder = commit.MetricsRecorder

// Request is the external request shape for one calculation (§6
// CalculateRequest): a proposal identifier, tenant, and an optional
// delta describing what changed since the last calculation for that
// proposal.
type Request struct {
	ProposalID string
	Tenant     string
	Changes    *preparation.Delta
}

// Response is the external response shape: the computed result, its
// idempotency status, and the phase-timing breakdown §6 calls for.
type Response struct {
	Result     pricing.Result
	Idempotent bool
	Timings    commit.PhaseTimings
}

// Orchestrator runs Prepare -> Compute -> Commit for one request,
// enforcing the wall-clock ceiling around Compute and translating a
// panic recovered from the compute goroutine into an INTERNAL
// pricingerr.Error, so a panic inside Compute never crashes the process.
// Panics in the preparation and commit stages are not recovered here.
type Orchestrator struct {
	preparation *preparation.Stage
	commit      *commit.Stage
	metrics     MetricsRecorder
	wallBudget  time.Duration
	log         *zap.Logger
}

func New(prep *preparation.Stage, commitStage *commit.Stage, metrics MetricsRecorder, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		preparation: prep,
		commit:      commitStage,
		metrics:     metrics,
		wallBudget:  compute.WallBudget,
		log:         log,
	}
}

// Calculate runs the full pipeline for one request.
func (o *Orchestrator) Calculate(ctx context.Context, req Request) (Response, error) {
	if req.ProposalID == "" {
		return Response{}, pricingerr.New(pricingerr.InvalidInput, "proposalId is required")
	}

	startedAt := time.Now()

	frozen, prepMs, err := o.runPreparation(ctx, req)
	if err != nil {
		o.recordError("preparation", err)
		return Response{}, err
	}

	result, computeMs, err := o.runCompute(ctx, frozen)
	if err != nil {
		o.recordError("compute", err)
		return Response{}, err
	}

	finishedAt := time.Now()
	timings := commit.PhaseTimings{
		PreparationMs: prepMs,
		ComputeMs:     computeMs,
	}

	commitStart := time.Now()
	outcome, err := o.commit.Commit(ctx, commit.Request{
		ProposalID:    req.ProposalID,
		Tenant:        req.Tenant,
		Version:       frozen.SchemaVersion,
		EngineVersion: EngineVersion,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
		Timings:       timings,
		Result:        *result,
	})
	timings.CommitMs = time.Since(commitStart).Milliseconds()
	timings.TotalMs = time.Since(startedAt).Milliseconds()
	if err != nil {
		o.recordError("commit", err)
		return Response{}, err
	}

	o.log.Info("calculation complete",
		zap.String("proposalId", req.ProposalID),
		zap.Bool("idempotent", outcome.Idempotent),
		zap.Int64("totalMs", timings.TotalMs),
	)
	return Response{Result: outcome.Result, Idempotent: outcome.Idempotent, Timings: timings}, nil
}

func (o *Orchestrator) runPreparation(ctx context.Context, req Request) (pricing.FrozenInput, int64, error) {
	started := time.Now()
	defer func() {
		o.metrics.ObserveStageLatency("preparation", time.Since(started).Milliseconds())
	}()

	frozen, err := o.preparation.Prepare(ctx, preparation.Request{
		ProposalID: req.ProposalID,
		Tenant:     req.Tenant,
		Changes:    req.Changes,
	})
	if err != nil {
		return pricing.FrozenInput{}, 0, err
	}
	return frozen, time.Since(started).Milliseconds(), nil
}

// runCompute enforces the §5 wall-clock ceiling: Compute itself is a
// pure, clock-free function, so the ceiling is applied here, around the
// call, by racing it against a timer on a separate goroutine. Compute
// cannot be cancelled mid-flight — there is no cooperative cancellation
// point inside a CPU-bound tree walk — so a ceiling breach leaves the
// goroutine to finish on its own time; the caller just stops waiting for
// it and reports RESOURCE_LIMIT.
func (o *Orchestrator) runCompute(ctx context.Context, frozen pricing.FrozenInput) (*pricing.Result, int64, error) {
	started := time.Now()
	defer func() {
		o.metrics.ObserveStageLatency("compute", time.Since(started).Milliseconds())
	}()

	type outcome struct {
		result *pricing.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: pricingerr.Newf(pricingerr.Internal, "compute stage panicked: %v", r)}
			}
		}()
		result, err := compute.Compute(frozen)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, time.Since(started).Milliseconds(), out.err
		}
		return out.result, time.Since(started).Milliseconds(), nil
	case <-time.After(o.wallBudget):
		return nil, time.Since(started).Milliseconds(),
			pricingerr.Newf(pricingerr.ResourceLimit, "compute stage exceeded wall-clock budget of %s", o.wallBudget)
	case <-ctx.Done():
		return nil, time.Since(started).Milliseconds(),
			pricingerr.Wrap(pricingerr.ResourceLimit, "compute stage aborted by caller context", ctx.Err())
	}
}

func (o *Orchestrator) recordError(stage string, err error) {
	o.metrics.IncError(stage, string(pricingerr.KindOf(err)))
	o.log.Warn(fmt.Sprintf("%s stage failed", stage), zap.Error(err))
}
