package preparation

import (
	"sync"
	"time"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	infracache "github.com/Victor-armando18/pricing-engine/internal/infrastructure/cache"
)

// FrozenInputCache memoises a FrozenInput by the fingerprint of the
// request sans its `changes` field, so an unchanged proposal never pays
// the fetch+normalise+compile cost twice inside the TTL window (§4.2,
// "Preparation cache"). It also keeps a small side index from proposalId
// to the most recently cached fingerprint, which is how Stage decides
// whether an incoming delta can be patched onto a cached base instead of
// triggering a full fetch.
type FrozenInputCache struct {
	lru *infracache.LRU[pricing.FrozenInput]

	mu       sync.Mutex
	lastByID map[string]string
	failures map[string][]time.Time
}

// NewFrozenInputCache builds a cache with the given entry capacity and
// per-entry TTL.
func NewFrozenInputCache(capacity int, ttl time.Duration) *FrozenInputCache {
	return &FrozenInputCache{
		lru:      infracache.New[pricing.FrozenInput](capacity, ttl),
		lastByID: make(map[string]string),
		failures: make(map[string][]time.Time),
	}
}

// GetLastForProposal returns the most recently cached frozen input for
// proposalID, if its fingerprint entry is still live in the LRU.
func (c *FrozenInputCache) GetLastForProposal(proposalID string) (pricing.FrozenInput, bool) {
	c.mu.Lock()
	fp, ok := c.lastByID[proposalID]
	c.mu.Unlock()
	if !ok {
		var zero pricing.FrozenInput
		return zero, false
	}
	return c.Get(fp)
}

// Get returns the cached frozen input for fingerprint fp, if present and
// unexpired.
func (c *FrozenInputCache) Get(fp string) (pricing.FrozenInput, bool) {
	return c.lru.Get(fp)
}

// Put stores frozen under its own fingerprint and records it as the
// latest known state for its proposal.
func (c *FrozenInputCache) Put(frozen pricing.FrozenInput) {
	c.lru.Put(frozen.Fingerprint, frozen)
	c.mu.Lock()
	c.lastByID[frozen.ProposalID] = frozen.Fingerprint
	c.mu.Unlock()
}

// Invalidate drops any cached frozen input for fp, used after a commit
// changes what a subsequent fetch would see.
func (c *FrozenInputCache) Invalidate(fp string) {
	c.lru.Invalidate(fp)
}

// Stats exposes the underlying LRU's hit/miss/eviction counters.
func (c *FrozenInputCache) Stats() infracache.Stats {
	return c.lru.Stats()
}

// RecordDeltaFailure notes that a delta patch attempt for proposalID just
// failed, for the "recent failed delta attempts" leg of §4.2's delta
// decision.
func (c *FrozenInputCache) RecordDeltaFailure(proposalID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[proposalID] = append(c.failures[proposalID], at)
}

// RecentFailureCount returns how many delta failures were recorded for
// proposalID within window of now, pruning older entries as it goes so
// the per-proposal slice never grows unbounded.
func (c *FrozenInputCache) RecentFailureCount(proposalID string, now time.Time, window time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-window)
	kept := c.failures[proposalID][:0]
	for _, t := range c.failures[proposalID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(c.failures, proposalID)
		return 0
	}
	c.failures[proposalID] = kept
	return len(kept)
}
