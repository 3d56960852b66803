package pricingengine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/orchestrator"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

// Engine is the single exported entrypoint embedders construct once at
// boot and call per request.
type Engine struct {
	orch *orchestrator.Orchestrator
}

// Dependencies bundles the collaborator implementations Engine needs:
// a data fetcher for the preparation stage and the commit-stage ports
// implemented by internal/infrastructure/postgres and
// internal/infrastructure/broker.
type Dependencies struct {
	Fetcher     preparation.DataFetcher
	ResultStore commit.ResultStore
	Locker      commit.AdvisoryLocker
	Webhooks    *commit.WebhookNotifier
	Metrics     commit.MetricsRecorder
	Log         *zap.Logger

	FrozenCacheCapacity int
	ResultCacheCapacity int
}

// New wires an Engine from its collaborators. FrozenCacheCapacity and
// ResultCacheCapacity default to 10,000 entries when left at zero.
func New(deps Dependencies) *Engine {
	if deps.FrozenCacheCapacity == 0 {
		deps.FrozenCacheCapacity = 10_000
	}
	if deps.ResultCacheCapacity == 0 {
		deps.ResultCacheCapacity = 10_000
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	prep := preparation.NewStage(
		deps.Fetcher,
		newRuleCache(),
		preparation.NewFrozenInputCache(deps.FrozenCacheCapacity, frozenInputCacheTTL),
		deps.Log,
	)
	commitStage := commit.NewStage(
		deps.ResultStore, deps.Locker, deps.Webhooks, deps.Metrics, deps.Log,
		deps.ResultCacheCapacity, resultCacheTTL,
	)

	return &Engine{orch: orchestrator.New(prep, commitStage, deps.Metrics, deps.Log)}
}

// Calculate runs the full pipeline for one proposal.
func (e *Engine) Calculate(ctx context.Context, req CalculateRequest) (CalculateResponse, error) {
	resp, err := e.orch.Calculate(ctx, orchestrator.Request{
		ProposalID: req.ProposalID,
		Tenant:     req.Tenant,
		Changes:    req.Changes,
	})
	if err != nil {
		return CalculateResponse{}, err
	}
	return CalculateResponse{Result: resp.Result, Idempotent: resp.Idempotent, Timings: resp.Timings}, nil
}
