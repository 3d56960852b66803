package compute

import (
	"time"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
)

// Resource ceilings per computation, per §4.3's validation floor and §5's
// resource ceilings. Each has a soft threshold, crossed without aborting,
// and a hard threshold that aborts the computation with RESOURCE_LIMIT.
// Line items have only one threshold in the specification, so it is
// enforced as both.
const (
	SoftMaxModifiers = 1000
	HardMaxModifiers = 2000
	SoftMaxGroups    = 100
	HardMaxGroups    = 250
	MaxLineItems     = 5000
	MaxDependencyDepth = 10

	// WallBudget is the wall-clock ceiling on one Compute call. Compute
	// itself never reads a clock; internal/orchestrator applies this
	// ceiling around its call and aborts with RESOURCE_LIMIT:timeout.
	WallBudget = 5 * time.Second
)

// validateFloor checks the part of §4.3's validation floor that can be
// decided before grouping: size ceilings on the raw collections,
// duplicate modifier IDs, and mandatory configuration. The groups > 100
// (hard 250) ceiling is checked later, once grouping has actually
// happened — see checkGroupCeiling in grouping.go.
func validateFloor(frozen pricing.FrozenInput) error {
	if len(frozen.LineItems) > MaxLineItems {
		return pricingerr.Newf(pricingerr.ResourceLimit, "lineItems count %d exceeds ceiling %d", len(frozen.LineItems), MaxLineItems)
	}
	if len(frozen.Modifiers) > HardMaxModifiers {
		return pricingerr.Newf(pricingerr.ResourceLimit, "modifiers count %d exceeds hard ceiling %d", len(frozen.Modifiers), HardMaxModifiers)
	}
	if frozen.SchemaVersion == "" {
		return pricingerr.New(pricingerr.InvalidInput, "schemaVersion is required")
	}
	if frozen.Config.Mode == "" {
		return pricingerr.New(pricingerr.InvalidInput, "tax config mode is required")
	}

	seen := make(map[string]bool, len(frozen.Modifiers))
	for _, m := range frozen.Modifiers {
		if seen[m.ID] {
			return pricingerr.Newf(pricingerr.InvalidInput, "duplicate modifier id %q", m.ID)
		}
		seen[m.ID] = true
	}
	seenLines := make(map[string]bool, len(frozen.LineItems))
	for _, li := range frozen.LineItems {
		if seenLines[li.ID] {
			return pricingerr.Newf(pricingerr.InvalidInput, "duplicate line item id %q", li.ID)
		}
		seenLines[li.ID] = true
		if !li.UnitPrice.IsFinite() || !li.Quantity.IsFinite() {
			return pricingerr.Newf(pricingerr.InvalidInput, "line item %q has a non-finite numeric field", li.ID)
		}
	}
	return nil
}
