package commit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

type fakeLocker struct{}

func (fakeLocker) WithLock(ctx context.Context, proposalID string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeStore struct {
	mu      sync.Mutex
	writes  int
	byCheck map[string]WriteInput
}

func newFakeStore() *fakeStore {
	return &fakeStore{byCheck: make(map[string]WriteInput)}
}

func (s *fakeStore) Lookup(ctx context.Context, checksum string) (WriteInput, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byCheck[checksum]
	return w, ok, nil
}

func (s *fakeStore) Write(ctx context.Context, input WriteInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.byCheck[input.Audit.Result.Checksum] = input
	return nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveStageLatency(stage string, durationMs int64) {}
func (noopMetrics) IncError(stage string, kind string)                {}
func (noopMetrics) SetOutboxDepth(depth float64)                      {}

func newTestStage(store ResultStore) *Stage {
	return NewStage(store, fakeLocker{}, nil, noopMetrics{}, zap.NewNop(), 64, time.Minute)
}

func TestCommitWritesOnceAndReplaysIdempotently(t *testing.T) {
	store := newFakeStore()
	stage := newTestStage(store)
	result := pricing.Result{Checksum: "abc123", SubtotalQ2: money.Zero()}

	req := Request{ProposalID: "p1", Result: result}

	out1, err := stage.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, out1.Idempotent)
	assert.Equal(t, 1, store.writes)

	out2, err := stage.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, out2.Idempotent)
	// L1 cache satisfies the second call without touching the store again.
	assert.Equal(t, 1, store.writes)
}

func TestCommitRejectsMissingChecksum(t *testing.T) {
	stage := newTestStage(newFakeStore())
	_, err := stage.Commit(context.Background(), Request{ProposalID: "p1", Result: pricing.Result{}})
	require.Error(t, err)
}

func TestCommitReplaysFromStoreWhenL1CacheIsCold(t *testing.T) {
	store := newFakeStore()
	result := pricing.Result{Checksum: "dup-checksum", SubtotalQ2: money.Zero()}
	req := Request{ProposalID: "p1", Result: result}

	first := newTestStage(store)
	out1, err := first.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, out1.Idempotent)

	// A second Stage instance (e.g. a different process) shares the
	// database-backed store but starts with a cold L1 cache; it must
	// still detect the replay via ResultStore.Lookup.
	second := newTestStage(store)
	out2, err := second.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, out2.Idempotent)
	assert.Equal(t, 1, store.writes)
}
