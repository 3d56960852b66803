package preparation

import (
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// ValidateReferences checks that every cross-reference among the
// normalised collections resolves to something that actually exists.
// Cycle detection and the resource-limit ceilings of §4.3 step 1 live in
// internal/compute, which runs against the frozen input and can charge
// the wall-clock budget accurately; this pass only rejects input that
// could never produce a coherent dependency graph in the first place.
func ValidateReferences(lineItems []pricing.LineItem, modifiers []pricing.Modifier, dependencies []pricing.Dependency, rules []pricing.Rule) []Violation {
	var violations []Violation

	lineIDs := make(map[string]bool, len(lineItems))
	for _, li := range lineItems {
		lineIDs[li.ID] = true
	}
	modIDs := make(map[string]bool, len(modifiers))
	for _, m := range modifiers {
		modIDs[m.ID] = true
	}

	for _, m := range modifiers {
		if m.LineItemID != nil && !lineIDs[*m.LineItemID] {
			violations = append(violations, Violation{
				Field:  "modifiers[" + m.ID + "].lineItemId",
				Reason: "references unknown line item " + *m.LineItemID,
			})
		}
		if m.Kind == pricing.KindMargin && m.CostPercentage == nil && m.MissingCostStrategy == pricing.CostFail {
			// no cheap static check possible here; the FAIL path is enforced
			// against actual per-line cost at compute time.
			continue
		}
	}

	for _, d := range dependencies {
		if !modIDs[d.ModifierID] {
			violations = append(violations, Violation{
				Field:  "dependencies[].modifierId",
				Reason: "references unknown modifier " + d.ModifierID,
			})
		}
		if !modIDs[d.DependsOn] {
			violations = append(violations, Violation{
				Field:  "dependencies[].dependsOn",
				Reason: "references unknown modifier " + d.DependsOn,
			})
		}
		if d.ModifierID == d.DependsOn {
			violations = append(violations, Violation{
				Field:  "dependencies[" + d.ModifierID + "]",
				Reason: "modifier cannot depend on itself",
			})
		}
	}

	for _, r := range rules {
		if !modIDs[r.ModifierID] {
			violations = append(violations, Violation{
				Field:  "rules[].modifierId",
				Reason: "references unknown modifier " + r.ModifierID,
			})
		}
	}

	for _, li := range lineItems {
		if li.Quantity.IsNegative() {
			violations = append(violations, Violation{
				Field:  "lineItems[" + li.ID + "].quantity",
				Reason: "quantity must not be negative",
			})
		}
		if li.UnitPrice.IsNegative() {
			violations = append(violations, Violation{
				Field:  "lineItems[" + li.ID + "].unitPrice",
				Reason: "unitPrice must not be negative",
			})
		}
	}

	return violations
}
