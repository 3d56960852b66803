package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/commit"
	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
	"github.com/Victor-armando18/pricing-engine/internal/orchestrator"
	"github.com/Victor-armando18/pricing-engine/internal/preparation"
)

type fakeFetcher struct{ found bool }

func (f fakeFetcher) Fetch(ctx context.Context, proposalID, tenant string) (preparation.Snapshot, error) {
	if !f.found {
		return preparation.Snapshot{}, assertNotFoundErr
	}
	return preparation.Snapshot{
		ProposalID: proposalID,
		Tenant:     tenant,
		LineItems: []preparation.RawLineItem{
			{ID: "li-1", UnitPrice: "100.00", Quantity: "1", TaxSetting: "TAXABLE"},
		},
		Config: preparation.RawTaxConfig{Mode: "RETAIL", RetailRate: "0.10", UseTaxRate: "0", SchemaVersion: "v1"},
	}, nil
}

var assertNotFoundErr = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "proposal not found" }

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

func newTestOrchestrator(found bool) *orchestrator.Orchestrator {
	prep := preparation.NewStage(fakeFetcher{found: found}, ruleeval.NewCache(), preparation.NewFrozenInputCache(64, time.Minute), zap.NewNop())
	commitStage := commit.NewStage(&fakeStore{byChecksum: make(map[string]commit.WriteInput)}, fakeLocker{}, nil, noopMetrics{}, zap.NewNop(), 64, time.Minute)
	return orchestrator.New(prep, commitStage, noopMetrics{}, zap.NewNop())
}

func TestHandleCalculateReturnsResult(t *testing.T) {
	e := NewServer(newTestOrchestrator(true), 5*time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/proposals/p1/calculate", strings.NewReader(`{"tenant":"t1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"subtotalQ2":"100.00"`)
}

func TestHandleCalculateMapsDataFetchErrorToNotFound(t *testing.T) {
	e := NewServer(newTestOrchestrator(false), 5*time.Second)

	req := httptest.NewRequest(http.MethodPost, "/v1/proposals/missing/calculate", strings.NewReader(`{"tenant":"t1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"DATA_FETCH_ERROR"`)
}

func TestHealthz(t *testing.T) {
	e := NewServer(newTestOrchestrator(true), 5*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
