package pricingengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, proposalID, tenant string) (preparation.Snapshot, error) {
	return preparation.Snapshot{
		ProposalID: proposalID,
		Tenant:     tenant,
		LineItems: []preparation.RawLineItem{
			{ID: "li-1", UnitPrice: "50.00", Quantity: "2", TaxSetting: "TAXABLE"},
		},
		Config: preparation.RawTaxConfig{Mode: "RETAIL", RetailRate: "0.05", UseTaxRate: "0", SchemaVersion: "v1"},
	}, nil
}

type fakeLocker struct{}

func (fakeLocker) WithLock(ctx context.Context, proposalID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeStore struct{ byChecksum map[string]commit.WriteInput }

func (s *fakeStore) Lookup(ctx context.Context, checksum string) (commit.WriteInput, bool, error) {
	w, ok := s.byChecksum[checksum]
	return w, ok, nil
}

func (s *fakeStore) Write(ctx context.Context, input commit.WriteInput) error {
	s.byChecksum[input.Audit.Result.Checksum] = input
	return nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveStageLatency(stage string, durationMs int64) {}
func (noopMetrics) IncError(stage, kind string)                       {}
func (noopMetrics) SetOutboxDepth(depth float64)                      {}

func TestEngineCalculateEndToEnd(t *testing.T) {
	engine := New(Dependencies{
		Fetcher:     fakeFetcher{},
		ResultStore: &fakeStore{byChecksum: make(map[string]commit.WriteInput)},
		Locker:      fakeLocker{},
		Metrics:     noopMetrics{},
	})

	resp, err := engine.Calculate(context.Background(), CalculateRequest{ProposalID: "p1", Tenant: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "100.00", resp.Result.SubtotalQ2.String())
	assert.False(t, resp.Idempotent)
}
