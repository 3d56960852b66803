package preparation

import (
	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// Normalize turns a Snapshot's wire-shaped rows into the canonical domain
// model (§4.2): numeric literals parsed through money.Decimal (so
// exponential notation and negative zero are normalised the same way
// everywhere), defaults filled in, and every field-path-relevant string
// trimmed of variance the rule evaluator shouldn't have to account for.
//
// Normalize collects every violation before returning rather than failing
// fast, so a caller gets the complete §7 violation list in one round trip.
func Normalize(snap Snapshot) ([]pricing.LineItem, []pricing.Modifier, []pricing.Dependency, []pricing.Rule, pricing.TaxConfig, []Violation) {
	var violations []Violation

	lineItems := make([]pricing.LineItem, 0, len(snap.LineItems))
	seenLine := map[string]bool{}
	for _, raw := range snap.LineItems {
		if raw.ID == "" {
			violations = append(violations, Violation{Field: "lineItems[].id", Reason: "missing id"})
			continue
		}
		if seenLine[raw.ID] {
			violations = append(violations, Violation{Field: "lineItems[].id", Reason: "duplicate id " + raw.ID})
			continue
		}
		seenLine[raw.ID] = true

		unitPrice, err := money.FromString(raw.UnitPrice)
		if err != nil {
			violations = append(violations, Violation{Field: "lineItems[" + raw.ID + "].unitPrice", Reason: err.Error()})
			continue
		}
		qty, err := money.FromString(raw.Quantity)
		if err != nil {
			violations = append(violations, Violation{Field: "lineItems[" + raw.ID + "].quantity", Reason: err.Error()})
			continue
		}
		var cost *money.Decimal
		if raw.Cost != nil {
			c, err := money.FromString(*raw.Cost)
			if err != nil {
				violations = append(violations, Violation{Field: "lineItems[" + raw.ID + "].cost", Reason: err.Error()})
				continue
			}
			cost = &c
		}
		taxSetting := pricing.TaxSetting(raw.TaxSetting)
		if taxSetting == "" {
			taxSetting = pricing.Taxable
		}
		lineItems = append(lineItems, pricing.LineItem{
			ID:                 raw.ID,
			UnitPrice:          unitPrice,
			Quantity:           qty,
			Cost:               cost,
			TaxSetting:         taxSetting,
			UseTaxEligible:     raw.UseTaxEligible,
			VendorTaxCollected: raw.VendorTaxCollected,
		})
	}

	modifiers := make([]pricing.Modifier, 0, len(snap.Modifiers))
	seenMod := map[string]bool{}
	for _, raw := range snap.Modifiers {
		if raw.ID == "" {
			violations = append(violations, Violation{Field: "modifiers[].id", Reason: "missing id"})
			continue
		}
		if seenMod[raw.ID] {
			violations = append(violations, Violation{Field: "modifiers[].id", Reason: "duplicate id " + raw.ID})
			continue
		}
		seenMod[raw.ID] = true

		value, err := money.FromString(raw.Value)
		if err != nil {
			violations = append(violations, Violation{Field: "modifiers[" + raw.ID + "].value", Reason: err.Error()})
			continue
		}
		var costPct *money.Decimal
		if raw.CostPercentage != nil {
			c, err := money.FromString(*raw.CostPercentage)
			if err != nil {
				violations = append(violations, Violation{Field: "modifiers[" + raw.ID + "].costPercentage", Reason: err.Error()})
				continue
			}
			costPct = &c
		}
		applicationType := pricing.ApplicationType(raw.ApplicationType)
		if applicationType == "" {
			applicationType = pricing.PreTax
		}
		taxSetting := pricing.TaxSetting(raw.TaxSetting)
		if taxSetting == "" {
			taxSetting = pricing.Inherit
		}
		missingStrategy := pricing.MissingCostStrategy(raw.MissingCostStrategy)
		if missingStrategy == "" {
			missingStrategy = pricing.CostSkip
		}
		chainPriority := 0
		if raw.ChainPriority != nil {
			chainPriority = *raw.ChainPriority
		}
		modifiers = append(modifiers, pricing.Modifier{
			ID:                  raw.ID,
			Kind:                pricing.ModifierKind(raw.Kind),
			Value:               value,
			TaxSetting:          taxSetting,
			Category:            raw.Category,
			AffectsQuantity:     raw.AffectsQuantity,
			CostPercentage:      costPct,
			DisplayMode:         raw.DisplayMode,
			ApplicationType:     applicationType,
			ProductID:           raw.ProductID,
			ChainPriority:       chainPriority,
			LineItemID:          raw.LineItemID,
			CreatedAt:           raw.CreatedAt,
			MissingCostStrategy: missingStrategy,
		})
	}

	dependencies := make([]pricing.Dependency, 0, len(snap.Dependencies))
	for _, raw := range snap.Dependencies {
		dt := pricing.DependencyType(raw.Type)
		if dt != pricing.Requires && dt != pricing.Excludes {
			violations = append(violations, Violation{Field: "dependencies[].type", Reason: "unknown dependency type " + raw.Type})
			continue
		}
		dependencies = append(dependencies, pricing.Dependency{
			ModifierID: raw.ModifierID,
			DependsOn:  raw.DependsOn,
			Type:       dt,
		})
	}

	rules := make([]pricing.Rule, 0, len(snap.Rules))
	for _, raw := range snap.Rules {
		rules = append(rules, pricing.Rule{ModifierID: raw.ModifierID, Raw: raw.Logic})
	}

	config, cfgViolations := normalizeTaxConfig(snap.Config)
	violations = append(violations, cfgViolations...)

	return lineItems, modifiers, dependencies, rules, config, violations
}

func normalizeTaxConfig(raw RawTaxConfig) (pricing.TaxConfig, []Violation) {
	var violations []Violation
	mode := pricing.TaxMode(raw.Mode)
	if mode != pricing.Retail && mode != pricing.UseTax && mode != pricing.Mixed {
		violations = append(violations, Violation{Field: "config.mode", Reason: "unknown tax mode " + raw.Mode})
	}

	retailRate := money.Zero()
	if raw.RetailRate != "" {
		r, err := money.FromString(raw.RetailRate)
		if err != nil {
			violations = append(violations, Violation{Field: "config.retailRate", Reason: err.Error()})
		} else {
			retailRate = r
		}
	}
	useTaxRate := money.Zero()
	if raw.UseTaxRate != "" {
		r, err := money.FromString(raw.UseTaxRate)
		if err != nil {
			violations = append(violations, Violation{Field: "config.useTaxRate", Reason: err.Error()})
		} else {
			useTaxRate = r
		}
	}

	jurisdictions := make([]pricing.Jurisdiction, 0, len(raw.Jurisdictions))
	for _, j := range raw.Jurisdictions {
		rate, err := money.FromString(j.Rate)
		if err != nil {
			violations = append(violations, Violation{Field: "config.jurisdictions[" + j.Code + "].rate", Reason: err.Error()})
			continue
		}
		jurisdictions = append(jurisdictions, pricing.Jurisdiction{Code: j.Code, Order: j.Order, Rate: rate})
	}

	if len(violations) > 0 {
		return pricing.TaxConfig{}, violations
	}
	return pricing.TaxConfig{
		Mode:          mode,
		RetailRate:    retailRate,
		UseTaxRate:    useTaxRate,
		Jurisdictions: jurisdictions,
		SchemaVersion: raw.SchemaVersion,
	}, nil
}
