package commit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOutboxStore struct {
	mu         sync.Mutex
	pending    []OutboxEvent
	completed  []string
	failed     map[string]int
	deadLetter []string
}

func newFakeOutboxStore(events ...OutboxEvent) *fakeOutboxStore {
	return &fakeOutboxStore{pending: events, failed: make(map[string]int)}
}

func (s *fakeOutboxStore) ClaimBatch(ctx context.Context, limit int) ([]OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	batch := s.pending[:limit]
	s.pending = s.pending[limit:]
	return batch, nil
}

func (s *fakeOutboxStore) MarkCompleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	return nil
}

func (s *fakeOutboxStore) MarkFailed(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = retryCount
	return nil
}

func (s *fakeOutboxStore) MarkDeadLetter(ctx context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetter = append(s.deadLetter, id)
	return nil
}

type fakePublisher struct {
	fail map[string]bool
}

func (p fakePublisher) Publish(ctx context.Context, event OutboxEvent) error {
	if p.fail[event.ID] {
		return errors.New("publish failed")
	}
	return nil
}

func TestOutboxWorkerPublishesAndMarksCompleted(t *testing.T) {
	store := newFakeOutboxStore(
		OutboxEvent{ID: "e1", AggregateID: "p1"},
		OutboxEvent{ID: "e2", AggregateID: "p1"},
	)
	worker := NewOutboxWorker(store, fakePublisher{}, noopMetrics{}, zap.NewNop(), time.Hour, 10, 5)

	worker.tick(context.Background())

	assert.ElementsMatch(t, []string{"e1", "e2"}, store.completed)
}

func TestOutboxWorkerRetriesWithBackoffThenDeadLetters(t *testing.T) {
	store := newFakeOutboxStore(OutboxEvent{ID: "e1", AggregateID: "p1", RetryCount: 0})
	worker := NewOutboxWorker(store, fakePublisher{fail: map[string]bool{"e1": true}}, noopMetrics{}, zap.NewNop(), time.Hour, 10, 2)

	worker.tick(context.Background())
	require.Equal(t, 1, store.failed["e1"])
	assert.Empty(t, store.deadLetter)

	store.pending = append(store.pending, OutboxEvent{ID: "e1", AggregateID: "p1", RetryCount: 1})
	worker.tick(context.Background())
	assert.Contains(t, store.deadLetter, "e1")
}
