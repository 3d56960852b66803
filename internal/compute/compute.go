// Package compute implements §4.3, the pure compute stage: a function
// from a FrozenInput to a Result with no I/O, no clock, and no mutation
// of its input. The wall-clock ceiling §5 describes around this stage is
// enforced by internal/orchestrator, which is the only layer in the
// pipeline allowed to touch a clock around this call; Compute itself
// never does.
package compute

import (
	"github.com/Victor-armando18/pricing-engine/internal/domain/fingerprint"
	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
)

// Compute runs the full pure pipeline of §4.3 steps 1-11 against frozen
// and returns a checksummed Result, or exactly one *pricingerr.Error.
func Compute(frozen pricing.FrozenInput) (*pricing.Result, error) {
	if err := validateFloor(frozen); err != nil {
		return nil, err
	}

	lineByID := make(map[string]pricing.LineItem, len(frozen.LineItems))
	for _, li := range frozen.LineItems {
		lineByID[li.ID] = li
	}
	modifiersByID := make(map[string]pricing.Modifier, len(frozen.Modifiers))
	for _, m := range frozen.Modifiers {
		modifiersByID[m.ID] = m
	}
	rulesByModifier := make(map[string]any, len(frozen.Rules))
	for _, r := range frozen.Rules {
		rulesByModifier[r.ModifierID] = r.Raw
	}

	rs := newRunningState(frozen.LineItems)
	originalSubtotalQ7 := rs.total()

	resolvedTaxSetting := make(map[string]pricing.TaxSetting, len(frozen.Modifiers))
	for _, m := range frozen.Modifiers {
		resolvedTaxSetting[m.ID] = resolveTaxSetting(m, lineByID)
	}

	accepted, depRejections, err := resolveDependencies(frozen.Modifiers, frozen.Dependencies)
	if err != nil {
		return nil, err
	}
	rejections := depRejections

	survivors, ruleRejections, err := filterByRules(accepted, rulesByModifier, frozen, resolvedTaxSetting, originalSubtotalQ7)
	if err != nil {
		return nil, err
	}
	rejections = append(rejections, ruleRejections...)

	var preTax, postTax []pricing.Modifier
	for _, m := range survivors {
		if m.ApplicationType == pricing.PostTax {
			postTax = append(postTax, m)
		} else {
			preTax = append(preTax, m)
		}
	}

	preGroups := buildGroups(preTax, resolvedTaxSetting)
	postGroups := buildGroups(postTax, resolvedTaxSetting)
	if err := checkGroupCeiling(append(append([]pricing.Group{}, preGroups...), postGroups...)); err != nil {
		return nil, err
	}
	orderGroups(preGroups)
	orderGroups(postGroups)

	var adjustments []pricing.Adjustment
	for _, g := range preGroups {
		adj, err := applyGroup(g, modifiersByID, lineByID, rs)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}

	taxableBase := rs.totalFor(pricing.Taxable)
	nonTaxableBase := rs.totalFor(pricing.NonTaxable)
	taxOut := computeTax(frozen.Config, taxableBase, frozen.LineItems)

	for _, g := range postGroups {
		adj, err := applyGroup(g, modifiersByID, lineByID, rs)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}

	modifierTotalQ7 := money.Zero()
	for _, a := range adjustments {
		modifierTotalQ7 = modifierTotalQ7.Add(a.AmountQ7)
	}

	finalRunningQ7 := rs.total()
	customerGrandTotalQ7 := finalRunningQ7.Add(taxOut.RetailTaxQ7).RoundQ7()

	result := pricing.Result{
		SubtotalQ2:           originalSubtotalQ7.RoundQ2(),
		ModifierTotalQ2:      modifierTotalQ7.RoundQ2(),
		RetailTaxQ2:          taxOut.RetailTaxQ7.RoundQ2(),
		CustomerGrandTotalQ2: customerGrandTotalQ7.RoundQ2(),

		SubtotalQ7:           originalSubtotalQ7,
		TaxableBaseQ7:        taxableBase,
		NonTaxableBaseQ7:     nonTaxableBase,
		ModifierTotalQ7:      modifierTotalQ7,
		RetailTaxQ7:          taxOut.RetailTaxQ7,
		CustomerGrandTotalQ7: customerGrandTotalQ7,

		Adjustments: adjustments,
		Rejections:  rejections,
		SubTaxes:    taxOut.SubTaxes,
		TaxMode:     frozen.Config.Mode,
	}

	if taxOut.UseTaxQ7 != nil {
		useTaxQ2 := taxOut.UseTaxQ7.RoundQ2()
		internalGrandQ7 := customerGrandTotalQ7.Add(*taxOut.UseTaxQ7).RoundQ7()
		internalGrandQ2 := internalGrandQ7.RoundQ2()
		result.UseTaxQ7 = taxOut.UseTaxQ7
		result.UseTaxQ2 = &useTaxQ2
		result.InternalGrandTotalQ2 = &internalGrandQ2
	}

	checksum, err := fingerprint.Of(result)
	if err != nil {
		return nil, pricingerr.Wrap(pricingerr.Internal, "fingerprinting result", err)
	}
	result.Checksum = string(checksum)

	return &result, nil
}

func applyGroup(g pricing.Group, modifiersByID map[string]pricing.Modifier, lineByID map[string]pricing.LineItem, rs *runningState) (pricing.Adjustment, error) {
	switch g.Key.Kind {
	case pricing.KindMargin:
		return applyMarginGroup(g, modifiersByID, lineByID, rs)
	case pricing.KindPercentage:
		return applyPercentageGroup(g, rs), nil
	default:
		// fixed, quantity, and cost_adjustment share the fixed-amount,
		// proportionally-allocated shape; §4.3 step 7 only specifies a
		// distinct formula for percentage, fixed, and margin.
		return applyFixedGroup(g, rs), nil
	}
}

// filterByRules implements §4.3 step 4: evaluate each surviving
// modifier's compiled rule against an evaluation context built from the
// base subtotal, line items, and proposal metadata. A modifier with no
// rule attached always survives. Compile/eval failures discard only that
// modifier — they never abort the whole computation, per §7's
// propagation policy.
func filterByRules(modifiers []pricing.Modifier, rulesByModifier map[string]any, frozen pricing.FrozenInput, resolvedTaxSetting map[string]pricing.TaxSetting, subtotalQ7 money.Decimal) ([]pricing.Modifier, []pricing.Rejection, error) {
	ctx := buildEvalContext(frozen, subtotalQ7)

	var survivors []pricing.Modifier
	var rejections []pricing.Rejection
	for _, m := range modifiers {
		raw, hasRule := rulesByModifier[m.ID]
		if !hasRule {
			survivors = append(survivors, m)
			continue
		}
		compiled, err := ruleeval.Compile(raw)
		if err != nil {
			rejections = append(rejections, pricing.Rejection{ModifierID: m.ID, Reason: "rule_eval_error"})
			continue
		}
		ok, err := compiled.Eval(ctx)
		if err != nil {
			rejections = append(rejections, pricing.Rejection{ModifierID: m.ID, Reason: "rule_eval_error"})
			continue
		}
		if !ok {
			rejections = append(rejections, pricing.Rejection{ModifierID: m.ID, Reason: "rule_failed"})
			continue
		}
		survivors = append(survivors, m)
	}
	return survivors, rejections, nil
}

func buildEvalContext(frozen pricing.FrozenInput, subtotalQ7 money.Decimal) *ruleeval.Context {
	lineItems := make([]any, len(frozen.LineItems))
	for i, li := range frozen.LineItems {
		cost := any(nil)
		if li.Cost != nil {
			cost = li.Cost.String()
		}
		lineItems[i] = map[string]any{
			"id": li.ID, "unitPrice": li.UnitPrice.String(), "quantity": li.Quantity.String(),
			"cost": cost, "taxSetting": string(li.TaxSetting),
		}
	}
	return &ruleeval.Context{
		Proposal: frozen.ProposalMeta,
		Computed: map[string]any{
			"subtotal":  subtotalQ7.String(),
			"lineItems": lineItems,
		},
		Customer:          frozen.CustomerMeta,
		Project:           frozen.ProjectMeta,
		Running:           map[string]any{},
		EvaluationContext: map[string]any{},
	}
}
