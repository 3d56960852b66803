package preparation

import (
	"fmt"
	"sort"

	"github.com/mitchellh/copystructure"

	"github.com/Victor-armando18/pricing-engine/internal/domain/fingerprint"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// Freeze produces the single owned, immutable value every downstream
// stage reads through (§4.2, "Deep mutation isolation"). The three
// metadata trees are the only maps-of-maps in the input — line items,
// modifiers, dependencies, and rules are already value-typed slices by
// the time Normalize returns them — so those are the only values that
// need a genuine deep copy; copystructure walks them via reflection the
// same way the teacher's rule-pack loader deep-copies loaded definitions
// before handing them to a running engine.
func Freeze(
	proposalID, tenant, schemaVersion string,
	lineItems []pricing.LineItem,
	modifiers []pricing.Modifier,
	dependencies []pricing.Dependency,
	rules []pricing.Rule,
	config pricing.TaxConfig,
	proposalMeta, customerMeta, projectMeta map[string]any,
) (pricing.FrozenInput, error) {
	sortNormalizedArrays(lineItems, modifiers, dependencies, rules)

	frozenProposalMeta, err := deepFreezeMeta(proposalMeta)
	if err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: freeze proposal metadata: %w", err)
	}
	frozenCustomerMeta, err := deepFreezeMeta(customerMeta)
	if err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: freeze customer metadata: %w", err)
	}
	frozenProjectMeta, err := deepFreezeMeta(projectMeta)
	if err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: freeze project metadata: %w", err)
	}

	fp, err := fingerprintOf(proposalID, tenant, schemaVersion, lineItems, modifiers, dependencies, rules, config, frozenProposalMeta, frozenCustomerMeta, frozenProjectMeta)
	if err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: fingerprint input: %w", err)
	}

	return pricing.NewFrozenInput(
		proposalID, tenant, schemaVersion,
		lineItems, modifiers, dependencies, rules, config,
		frozenProposalMeta, frozenCustomerMeta, frozenProjectMeta,
		string(fp),
	), nil
}

// sortNormalizedArrays re-sorts every array in process memory (§4.2,
// "Arrays are re-sorted ... to neutralise database collation variance").
// It runs for both entry points into Freeze — a fresh fetch and a
// delta-patched cache hit — since a patch can append or reorder entries
// just as easily as a DB collation can. Go's `<` on strings compares
// bytes, never a locale-aware collation, so this sort is already the
// locale-insensitive one the spec calls for.
func sortNormalizedArrays(lineItems []pricing.LineItem, modifiers []pricing.Modifier, dependencies []pricing.Dependency, rules []pricing.Rule) {
	sort.SliceStable(lineItems, func(i, j int) bool { return lineItems[i].ID < lineItems[j].ID })
	sort.SliceStable(modifiers, func(i, j int) bool {
		if modifiers[i].ChainPriority != modifiers[j].ChainPriority {
			return modifiers[i].ChainPriority < modifiers[j].ChainPriority
		}
		return modifiers[i].ID < modifiers[j].ID
	})
	sort.SliceStable(dependencies, func(i, j int) bool {
		if dependencies[i].DependsOn != dependencies[j].DependsOn {
			return dependencies[i].DependsOn < dependencies[j].DependsOn
		}
		return dependencies[i].ModifierID < dependencies[j].ModifierID
	})
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].ModifierID < rules[j].ModifierID })
}

// deepFreezeMeta returns a deep copy of m that shares no backing storage
// with the caller's original value, so no later mutation of the request
// object can reach through a FrozenInput.
func deepFreezeMeta(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	copied, err := copystructure.Copy(m)
	if err != nil {
		return nil, err
	}
	out, ok := copied.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("preparation: deep copy of metadata changed shape")
	}
	return out, nil
}

type inputTree struct {
	ProposalID    string
	Tenant        string
	SchemaVersion string
	LineItems     []pricing.LineItem
	Modifiers     []pricing.Modifier
	Dependencies  []pricing.Dependency
	Rules         []pricing.Rule
	Config        pricing.TaxConfig
	ProposalMeta  map[string]any
	CustomerMeta  map[string]any
	ProjectMeta   map[string]any
}

// CanonicalValue lets the whole prepared-input tree be fingerprinted the
// same way a Result is, so the preparation cache key and the frozen
// input's identity are always derived the same way.
func (t inputTree) CanonicalValue() any {
	lineItems := make([]any, len(t.LineItems))
	for i, li := range t.LineItems {
		cost := any(nil)
		if li.Cost != nil {
			cost = *li.Cost
		}
		lineItems[i] = map[string]any{
			"id": li.ID, "unitPrice": li.UnitPrice, "quantity": li.Quantity,
			"cost": cost, "taxSetting": string(li.TaxSetting),
			"useTaxEligible": li.UseTaxEligible, "vendorTaxCollected": li.VendorTaxCollected,
		}
	}
	modifiers := make([]any, len(t.Modifiers))
	for i, m := range t.Modifiers {
		costPct := any(nil)
		if m.CostPercentage != nil {
			costPct = *m.CostPercentage
		}
		productID := "null"
		if m.ProductID != nil {
			productID = *m.ProductID
		}
		lineItemID := any(nil)
		if m.LineItemID != nil {
			lineItemID = *m.LineItemID
		}
		modifiers[i] = map[string]any{
			"id": m.ID, "kind": string(m.Kind), "value": m.Value,
			"taxSetting": string(m.TaxSetting), "category": m.Category,
			"affectsQuantity": m.AffectsQuantity, "costPercentage": costPct,
			"displayMode": m.DisplayMode, "applicationType": string(m.ApplicationType),
			"productId": productID, "chainPriority": fmt.Sprintf("%d", m.ChainPriority),
			"lineItemId": lineItemID, "createdAt": fmt.Sprintf("%d", m.CreatedAt),
			"missingCostStrategy": string(m.MissingCostStrategy),
		}
	}
	deps := make([]any, len(t.Dependencies))
	for i, d := range t.Dependencies {
		deps[i] = map[string]any{"modifierId": d.ModifierID, "dependsOn": d.DependsOn, "type": string(d.Type)}
	}
	rules := make([]any, len(t.Rules))
	for i, r := range t.Rules {
		rules[i] = map[string]any{"modifierId": r.ModifierID, "logic": r.Raw}
	}
	jurisdictions := make([]any, len(t.Config.Jurisdictions))
	for i, j := range t.Config.Jurisdictions {
		jurisdictions[i] = map[string]any{"code": j.Code, "order": fmt.Sprintf("%d", j.Order), "rate": j.Rate}
	}
	return map[string]any{
		"proposalId":    t.ProposalID,
		"tenant":        t.Tenant,
		"schemaVersion": t.SchemaVersion,
		"lineItems":     lineItems,
		"modifiers":     modifiers,
		"dependencies":  deps,
		"rules":         rules,
		"config": map[string]any{
			"mode": string(t.Config.Mode), "retailRate": t.Config.RetailRate,
			"useTaxRate": t.Config.UseTaxRate, "jurisdictions": jurisdictions,
			"schemaVersion": t.Config.SchemaVersion,
		},
		"proposalMeta": metaOrEmpty(t.ProposalMeta),
		"customerMeta": metaOrEmpty(t.CustomerMeta),
		"projectMeta":  metaOrEmpty(t.ProjectMeta),
	}
}

func metaOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func fingerprintOf(
	proposalID, tenant, schemaVersion string,
	lineItems []pricing.LineItem,
	modifiers []pricing.Modifier,
	dependencies []pricing.Dependency,
	rules []pricing.Rule,
	config pricing.TaxConfig,
	proposalMeta, customerMeta, projectMeta map[string]any,
) (fingerprint.Fingerprint, error) {
	tree := inputTree{
		ProposalID: proposalID, Tenant: tenant, SchemaVersion: schemaVersion,
		LineItems: lineItems, Modifiers: modifiers, Dependencies: dependencies, Rules: rules,
		Config: config, ProposalMeta: proposalMeta, CustomerMeta: customerMeta, ProjectMeta: projectMeta,
	}
	return fingerprint.Of(tree)
}
