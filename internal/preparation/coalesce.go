package preparation

import (
	"golang.org/x/sync/singleflight"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// Coalescer collapses concurrent Prepare calls for the same proposal into
// a single in-flight fetch+normalise+compile, per §4.2's stampede
// prevention design note. Every caller sharing a proposalId at the same
// moment gets the same result (or the same error) rather than each
// triggering its own database round trip.
type Coalescer struct {
	group singleflight.Group
}

// NewCoalescer constructs an empty coalescer.
func NewCoalescer() *Coalescer { return &Coalescer{} }

// Do runs fn for proposalId, sharing the result with any other caller
// that is already waiting on the same proposalId.
func (c *Coalescer) Do(proposalID string, fn func() (pricing.FrozenInput, error)) (pricing.FrozenInput, error) {
	v, err, _ := c.group.Do(proposalID, func() (any, error) {
		return fn()
	})
	if err != nil {
		return pricing.FrozenInput{}, err
	}
	return v.(pricing.FrozenInput), nil
}
