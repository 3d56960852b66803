package compute

import (
	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
)

// runningState tracks each line item's current Q7 amount as groups are
// applied in order (§4.3 step 7), so every group's proportional
// allocation is weighted by the state left behind by the groups applied
// before it, not by the original subtotal alone.
type runningState struct {
	perLine    map[string]money.Decimal
	taxSetting map[string]pricing.TaxSetting
	order      []string // line IDs in a stable, deterministic iteration order
}

func newRunningState(lineItems []pricing.LineItem) *runningState {
	rs := &runningState{
		perLine:    make(map[string]money.Decimal, len(lineItems)),
		taxSetting: make(map[string]pricing.TaxSetting, len(lineItems)),
		order:      make([]string, 0, len(lineItems)),
	}
	for _, li := range lineItems {
		rs.perLine[li.ID] = li.UnitPrice.Mul(li.Quantity).RoundQ7()
		rs.taxSetting[li.ID] = li.TaxSetting
		rs.order = append(rs.order, li.ID)
	}
	return rs
}

func (rs *runningState) totalFor(setting pricing.TaxSetting) money.Decimal {
	total := money.Zero()
	for _, id := range rs.order {
		if rs.taxSetting[id] == setting {
			total = total.Add(rs.perLine[id])
		}
	}
	return total
}

func (rs *runningState) total() money.Decimal {
	total := money.Zero()
	for _, id := range rs.order {
		total = total.Add(rs.perLine[id])
	}
	return total
}

func (rs *runningState) linesFor(setting pricing.TaxSetting) []string {
	var ids []string
	for _, id := range rs.order {
		if rs.taxSetting[id] == setting {
			ids = append(ids, id)
		}
	}
	return ids
}

func (rs *runningState) apply(allocations []pricing.LineAllocation) {
	for _, a := range allocations {
		rs.perLine[a.LineItemID] = rs.perLine[a.LineItemID].Add(a.AmountQ7)
	}
}

// allocateProportional splits amount across lineIDs proportionally to
// weights, rounding each first-pass share to Q7 and pinning the residual
// to the last allocation so the sum is exact (§4.3 step 7, "fixed"; the
// allocation-closure property in §8).
func allocateProportional(amount money.Decimal, lineIDs []string, weights []money.Decimal) []pricing.LineAllocation {
	if len(lineIDs) == 0 {
		return nil
	}
	total := money.Sum(weights...)
	allocations := make([]pricing.LineAllocation, len(lineIDs))

	if total.IsZero() {
		// No weight to distribute by; pin the whole amount to the last line
		// so the closure property still holds exactly.
		for i, id := range lineIDs {
			amt := money.Zero()
			if i == len(lineIDs)-1 {
				amt = amount
			}
			allocations[i] = pricing.LineAllocation{LineItemID: id, AmountQ7: amt}
		}
		return allocations
	}

	runningSum := money.Zero()
	for i, id := range lineIDs {
		share, _ := weights[i].Mul(amount).Quo(total)
		share = share.RoundQ7()
		allocations[i] = pricing.LineAllocation{LineItemID: id, AmountQ7: share}
		runningSum = runningSum.Add(share)
	}
	residual := amount.Sub(runningSum)
	if !residual.IsZero() {
		last := len(allocations) - 1
		allocations[last].AmountQ7 = allocations[last].AmountQ7.Add(residual)
	}
	return allocations
}

// applyPercentageGroup implements the "percentage" branch of §4.3 step 7.
func applyPercentageGroup(group pricing.Group, rs *runningState) pricing.Adjustment {
	base := rs.totalFor(group.Key.TaxSetting)
	rate := group.CombinedValue
	hundred := money.FromInt64(100, 0)
	scaled, _ := base.Mul(rate).Quo(hundred)
	adjustment := scaled.RoundQ7()

	lineIDs := rs.linesFor(group.Key.TaxSetting)
	weights := make([]money.Decimal, len(lineIDs))
	for i, id := range lineIDs {
		weights[i] = rs.perLine[id]
	}
	allocations := allocateProportional(adjustment, lineIDs, weights)
	rs.apply(allocations)

	return pricing.Adjustment{
		GroupKey:           group.Key,
		ModifierIDs:        group.ModifierIDs,
		CombinedValue:      group.CombinedValue,
		AmountQ7:           adjustment,
		PerLineAllocations: allocations,
		ApplicationType:    group.Key.ApplicationType,
		TaxSetting:         group.Key.TaxSetting,
	}
}

// applyFixedGroup implements the "fixed" branch of §4.3 step 7.
func applyFixedGroup(group pricing.Group, rs *runningState) pricing.Adjustment {
	adjustment := group.CombinedValue.RoundQ7()

	lineIDs := rs.linesFor(group.Key.TaxSetting)
	weights := make([]money.Decimal, len(lineIDs))
	for i, id := range lineIDs {
		weights[i] = rs.perLine[id]
	}
	allocations := allocateProportional(adjustment, lineIDs, weights)
	rs.apply(allocations)

	return pricing.Adjustment{
		GroupKey:           group.Key,
		ModifierIDs:        group.ModifierIDs,
		CombinedValue:      group.CombinedValue,
		AmountQ7:           adjustment,
		PerLineAllocations: allocations,
		ApplicationType:    group.Key.ApplicationType,
		TaxSetting:         group.Key.TaxSetting,
	}
}

// applyMarginGroup implements the "margin" branch of §4.3 step 7. Unlike
// percentage and fixed, a margin adjustment is computed directly per line
// item from that line's own cost and unit price, so no proportional
// allocation step is needed — the per-line amounts are exact by
// construction.
func applyMarginGroup(group pricing.Group, modifiersByID map[string]pricing.Modifier, lineByID map[string]pricing.LineItem, rs *runningState) (pricing.Adjustment, error) {
	targets := marginTargetLines(group, modifiersByID, lineByID, rs)

	hundred := money.FromInt64(100, 0)
	total := money.Zero()
	var allocations []pricing.LineAllocation

	for _, lineID := range targets {
		li := lineByID[lineID]
		for _, modID := range group.ModifierIDs {
			m := modifiersByID[modID]
			if m.Kind != pricing.KindMargin {
				continue
			}
			if m.LineItemID != nil && *m.LineItemID != lineID {
				continue
			}
			margin, _ := m.Value.Quo(hundred)
			if margin.IsNegative() || margin.Cmp(money.FromInt64(1, 0)) >= 0 {
				return pricing.Adjustment{}, pricingerr.Newf(pricingerr.InvalidMargin, "margin %s outside [0,1) for modifier %s", m.Value.String(), m.ID)
			}

			cost := li.Cost
			if cost == nil {
				switch m.MissingCostStrategy {
				case pricing.CostSkip:
					continue
				case pricing.CostUseDefault:
					if m.CostPercentage == nil {
						continue
					}
					defaultCost := li.UnitPrice.Mul(*m.CostPercentage)
					cost = &defaultCost
				case pricing.CostFail:
					return pricing.Adjustment{}, pricingerr.Newf(pricingerr.InvalidInput, "line item %s has no cost and modifier %s requires FAIL on missing cost", lineID, m.ID)
				default:
					continue
				}
			}

			one := money.FromInt64(1, 0)
			newPrice, err := cost.Quo(one.Sub(margin))
			if err != nil {
				return pricing.Adjustment{}, pricingerr.Wrap(pricingerr.InvalidMargin, "computing margin-adjusted price", err)
			}
			delta := newPrice.Sub(li.UnitPrice).Mul(li.Quantity).RoundQ7()

			allocations = append(allocations, pricing.LineAllocation{LineItemID: lineID, AmountQ7: delta})
			total = total.Add(delta)
		}
	}

	rs.apply(allocations)
	return pricing.Adjustment{
		GroupKey:           group.Key,
		ModifierIDs:        group.ModifierIDs,
		CombinedValue:      group.CombinedValue,
		AmountQ7:           total,
		PerLineAllocations: allocations,
		ApplicationType:    group.Key.ApplicationType,
		TaxSetting:         group.Key.TaxSetting,
	}, nil
}

// marginTargetLines resolves which line items a margin group's modifiers
// apply to: each modifier that names a lineItemId targets exactly that
// line; a modifier naming none is treated as applying to every line in
// the group's tax-setting partition.
func marginTargetLines(group pricing.Group, modifiersByID map[string]pricing.Modifier, lineByID map[string]pricing.LineItem, rs *runningState) []string {
	seen := map[string]bool{}
	var targets []string
	for _, modID := range group.ModifierIDs {
		m, ok := modifiersByID[modID]
		if !ok || m.Kind != pricing.KindMargin {
			continue
		}
		if m.LineItemID != nil {
			if _, ok := lineByID[*m.LineItemID]; ok && !seen[*m.LineItemID] {
				seen[*m.LineItemID] = true
				targets = append(targets, *m.LineItemID)
			}
			continue
		}
		for _, id := range rs.linesFor(group.Key.TaxSetting) {
			if !seen[id] {
				seen[id] = true
				targets = append(targets, id)
			}
		}
	}
	return targets
}
