package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

type fakeFetcher struct {
	snapshot preparation.Snapshot
}

func (f fakeFetcher) Fetch(ctx context.Context, proposalID, tenant string) (preparation.Snapshot, error) {
	return f.snapshot, nil
}

func oneLineItemSnapshot(proposalID string) preparation.Snapshot {
	return preparation.Snapshot{
		ProposalID: proposalID,
		Tenant:     "tenant-1",
		LineItems: []preparation.RawLineItem{
			{ID: "li-1", UnitPrice: "100.00", Quantity: "2", TaxSetting: "TAXABLE"},
		},
		Config: preparation.RawTaxConfig{
			Mode:          "RETAIL",
			RetailRate:    "0.10",
			UseTaxRate:    "0",
			SchemaVersion: "v1",
		},
	}
}

type fakeLocker struct{}

func (fakeLocker) WithLock(ctx context.Context, proposalID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeResultStore struct {
	byChecksum map[string]commit.WriteInput
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{byChecksum: make(map[string]commit.WriteInput)}
}

func (s *fakeResultStore) Lookup(ctx context.Context, checksum string) (commit.WriteInput, bool, error) {
	w, ok := s.byChecksum[checksum]
	return w, ok, nil
}

func (s *fakeResultStore) Write(ctx context.Context, input commit.WriteInput) error {
	s.byChecksum[input.Audit.Result.Checksum] = input
	return nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveStageLatency(stage string, durationMs int64) {}
func (noopMetrics) IncError(stage, kind string)                       {}
func (noopMetrics) SetOutboxDepth(depth float64)                      {}

func newTestOrchestrator(fetcher preparation.DataFetcher) *Orchestrator {
	prep := preparation.NewStage(fetcher, ruleeval.NewCache(), preparation.NewFrozenInputCache(64, time.Minute), zap.NewNop())
	commitStage := commit.NewStage(newFakeResultStore(), fakeLocker{}, nil, noopMetrics{}, zap.NewNop(), 64, time.Minute)
	return New(prep, commitStage, noopMetrics{}, zap.NewNop())
}

func TestCalculateRunsFullPipeline(t *testing.T) {
	orch := newTestOrchestrator(fakeFetcher{snapshot: oneLineItemSnapshot("p1")})

	resp, err := orch.Calculate(context.Background(), Request{ProposalID: "p1", Tenant: "tenant-1"})
	require.NoError(t, err)
	assert.False(t, resp.Idempotent)
	assert.Equal(t, "200.00", resp.Result.SubtotalQ2.String())
	assert.Equal(t, "220.00", resp.Result.CustomerGrandTotalQ2.String())
	assert.Greater(t, resp.Timings.TotalMs, int64(-1))
}

func TestCalculateIsIdempotentOnRepeat(t *testing.T) {
	orch := newTestOrchestrator(fakeFetcher{snapshot: oneLineItemSnapshot("p1")})

	first, err := orch.Calculate(context.Background(), Request{ProposalID: "p1", Tenant: "tenant-1"})
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	second, err := orch.Calculate(context.Background(), Request{ProposalID: "p1", Tenant: "tenant-1"})
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Result.Checksum, second.Result.Checksum)
}

func TestCalculateRejectsMissingProposalID(t *testing.T) {
	orch := newTestOrchestrator(fakeFetcher{})

	_, err := orch.Calculate(context.Background(), Request{Tenant: "tenant-1"})
	require.Error(t, err)
	assert.Equal(t, pricingerr.InvalidInput, pricingerr.KindOf(err))
}
