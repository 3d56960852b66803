package preparation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
)

type fakeFetcher struct {
	calls int
	snap  Snapshot
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, proposalID, tenant string) (Snapshot, error) {
	f.calls++
	if f.err != nil {
		return Snapshot{}, f.err
	}
	snap := f.snap
	snap.ProposalID = proposalID
	snap.Tenant = tenant
	return snap, nil
}

func fixtureSnapshot() Snapshot {
	return Snapshot{
		LineItems: []RawLineItem{
			{ID: "li-1", UnitPrice: "100.00", Quantity: "2", TaxSetting: "TAXABLE"},
		},
		Modifiers: []RawModifier{
			{ID: "mod-1", Kind: "percentage", Value: "0.10", ApplicationType: "pre_tax", DisplayMode: "discount"},
		},
		Config: RawTaxConfig{Mode: "RETAIL", RetailRate: "0.07", SchemaVersion: "v1"},
	}
}

func newTestStage(fetcher DataFetcher) *Stage {
	return NewStage(fetcher, ruleeval.NewCache(), NewFrozenInputCache(64, time.Minute), zap.NewNop())
}

func TestPrepareFetchesNormalisesAndFreezes(t *testing.T) {
	fetcher := &fakeFetcher{snap: fixtureSnapshot()}
	stage := newTestStage(fetcher)

	frozen, err := stage.Prepare(context.Background(), Request{ProposalID: "p1", Tenant: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "p1", frozen.ProposalID)
	assert.Len(t, frozen.LineItems, 1)
	assert.Len(t, frozen.Modifiers, 1)
	assert.NotEmpty(t, frozen.Fingerprint)
	assert.Equal(t, 1, fetcher.calls)
}

func TestPrepareRejectsInvalidInputWithViolations(t *testing.T) {
	snap := fixtureSnapshot()
	snap.LineItems[0].UnitPrice = "not-a-number"
	fetcher := &fakeFetcher{snap: snap}
	stage := newTestStage(fetcher)

	_, err := stage.Prepare(context.Background(), Request{ProposalID: "p1", Tenant: "t1"})
	require.Error(t, err)
}

func TestPrepareCachesByFingerprintAndCoalescesConcurrentCalls(t *testing.T) {
	fetcher := &fakeFetcher{snap: fixtureSnapshot()}
	stage := newTestStage(fetcher)

	n := 8
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := stage.Prepare(context.Background(), Request{ProposalID: "p1", Tenant: "t1"})
			results <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-results)
	}
	assert.LessOrEqual(t, fetcher.calls, 2) // coalescing collapses the concurrent burst
}

// multiItemSnapshot gives the delta tests enough line items and modifiers
// that patching a single one stays under the delta decision's 30%
// changed-item-ratio ceiling, so those tests exercise ApplyDelta's wiring
// rather than the forced-rebuild policy.
func multiItemSnapshot() Snapshot {
	return Snapshot{
		LineItems: []RawLineItem{
			{ID: "li-1", UnitPrice: "100.00", Quantity: "2", TaxSetting: "TAXABLE"},
			{ID: "li-2", UnitPrice: "50.00", Quantity: "1", TaxSetting: "TAXABLE"},
			{ID: "li-3", UnitPrice: "25.00", Quantity: "4", TaxSetting: "NON_TAXABLE"},
		},
		Modifiers: []RawModifier{
			{ID: "mod-1", Kind: "percentage", Value: "0.10", ApplicationType: "pre_tax", DisplayMode: "discount"},
			{ID: "mod-2", Kind: "fixed", Value: "5.00", ApplicationType: "pre_tax", DisplayMode: "fee"},
			{ID: "mod-3", Kind: "percentage", Value: "0.02", ApplicationType: "post_tax", DisplayMode: "rebate"},
		},
		Config: RawTaxConfig{Mode: "RETAIL", RetailRate: "0.07", SchemaVersion: "v1"},
	}
}

func TestPrepareAppliesDeltaWithoutRefetchingWhenBaseIsCached(t *testing.T) {
	fetcher := &fakeFetcher{snap: multiItemSnapshot()}
	stage := newTestStage(fetcher)

	_, err := stage.Prepare(context.Background(), Request{ProposalID: "p1", Tenant: "t1"})
	require.NoError(t, err)
	callsAfterFirst := fetcher.calls

	patch := []byte(`[{"op":"replace","path":"/modifiers/0/value","value":"0.2500000"}]`)
	frozen, err := stage.Prepare(context.Background(), Request{
		ProposalID: "p1", Tenant: "t1",
		Changes: &Delta{Type: DeltaModifierOnly, Changes: patch},
	})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, fetcher.calls, "delta should patch the cached base rather than re-fetching")
	assert.Equal(t, "0.2500000", frozen.Modifiers[0].Value.String())
}

func TestPrepareIgnoresDeltaForUnsupportedType(t *testing.T) {
	fetcher := &fakeFetcher{snap: multiItemSnapshot()}
	stage := newTestStage(fetcher)

	_, err := stage.Prepare(context.Background(), Request{ProposalID: "p1", Tenant: "t1"})
	require.NoError(t, err)
	callsAfterFirst := fetcher.calls

	patch := []byte(`[{"op":"replace","path":"/modifiers/0/value","value":"0.2500000"}]`)
	_, err = stage.Prepare(context.Background(), Request{
		ProposalID: "p1", Tenant: "t1",
		Changes: &Delta{Type: DeltaOther, Changes: patch},
	})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst+1, fetcher.calls, "an OTHER-typed delta must never be patched, only force a full rebuild")
}

func TestPrepareForcesFullRebuildWhenChangedRatioExceedsThreshold(t *testing.T) {
	fetcher := &fakeFetcher{snap: fixtureSnapshot()}
	stage := newTestStage(fetcher)

	_, err := stage.Prepare(context.Background(), Request{ProposalID: "p1", Tenant: "t1"})
	require.NoError(t, err)
	callsAfterFirst := fetcher.calls

	// fixtureSnapshot has exactly one line item and one modifier, so
	// changing the one modifier is a 50% change ratio — over the 30%
	// ceiling — and must force a full rebuild rather than a patch.
	patch := []byte(`[{"op":"replace","path":"/modifiers/0/value","value":"0.9900000"}]`)
	_, err = stage.Prepare(context.Background(), Request{
		ProposalID: "p1", Tenant: "t1",
		Changes: &Delta{Type: DeltaModifierOnly, Changes: patch},
	})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst+1, fetcher.calls, "changed ratio over 30% must force a full rebuild")
}
