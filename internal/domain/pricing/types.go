// Package pricing holds the data model shared by every stage of the
// pipeline: line items, modifiers, dependencies, tax configuration, and
// the result shapes the pure compute stage emits. These types are the
// "owned, read-only value" the design notes call for — preparation
// produces a FrozenInput once, and every downstream stage only ever reads
// through it.
package pricing

import (
	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
)

// TaxSetting classifies a line item or modifier for tax purposes.
type TaxSetting string

const (
	Taxable    TaxSetting = "TAXABLE"
	NonTaxable TaxSetting = "NON_TAXABLE"
	Inherit    TaxSetting = "inherit"
)

// ModifierKind selects how a modifier's value is applied.
type ModifierKind string

const (
	KindPercentage    ModifierKind = "percentage"
	KindFixed         ModifierKind = "fixed"
	KindMargin        ModifierKind = "margin"
	KindQuantity      ModifierKind = "quantity"
	KindCostAdjustment ModifierKind = "cost_adjustment"
)

// ApplicationType places a modifier before tax, against cost basis, or
// after tax is computed.
type ApplicationType string

const (
	PreTax  ApplicationType = "pre_tax"
	Cost    ApplicationType = "cost"
	PostTax ApplicationType = "post_tax"
)

// DependencyType is the edge kind in the modifier DAG.
type DependencyType string

const (
	Requires DependencyType = "REQUIRES"
	Excludes DependencyType = "EXCLUDES"
)

// TaxMode selects which tax computations run in §4.3 step 8.
type TaxMode string

const (
	Retail  TaxMode = "RETAIL"
	UseTax  TaxMode = "USE_TAX"
	Mixed   TaxMode = "MIXED"
)

// MissingCostStrategy controls margin-modifier behaviour when a line
// item's cost is absent (§4.3 step 7).
type MissingCostStrategy string

const (
	CostSkip       MissingCostStrategy = "SKIP"
	CostUseDefault MissingCostStrategy = "USE_DEFAULT"
	CostFail       MissingCostStrategy = "FAIL"
)

// LineItem is one priced unit of a proposal.
type LineItem struct {
	ID                 string         `json:"id"`
	UnitPrice          money.Decimal  `json:"unitPrice"`
	Quantity           money.Decimal  `json:"quantity"`
	Cost               *money.Decimal `json:"cost,omitempty"` // nil when no cost was supplied
	TaxSetting         TaxSetting     `json:"taxSetting"`
	UseTaxEligible     bool           `json:"useTaxEligible"`
	VendorTaxCollected bool           `json:"vendorTaxCollected"`
}

// Modifier is a single discount/fee/margin adjustment candidate.
type Modifier struct {
	ID                  string               `json:"id"`
	Kind                ModifierKind         `json:"kind"`
	Value               money.Decimal        `json:"value"`
	TaxSetting          TaxSetting           `json:"taxSetting"`
	Category            string               `json:"category"`
	AffectsQuantity     bool                 `json:"affectsQuantity"`
	CostPercentage      *money.Decimal       `json:"costPercentage,omitempty"`
	DisplayMode         string               `json:"displayMode"`
	ApplicationType     ApplicationType      `json:"applicationType"`
	ProductID           *string              `json:"productId,omitempty"`
	ChainPriority       int                  `json:"chainPriority"`
	LineItemID          *string              `json:"lineItemId,omitempty"`
	CreatedAt           int64                `json:"createdAt"` // unix nanos; used only for deterministic group ordering (§4.3.6)
	MissingCostStrategy MissingCostStrategy  `json:"missingCostStrategy"`
}

// Dependency is a directed edge in the modifier DAG.
type Dependency struct {
	ModifierID string         `json:"modifierId"`
	DependsOn  string         `json:"dependsOn"`
	Type       DependencyType `json:"type"`
}

// Rule pairs a modifier with its filter expression body. Raw carries the
// original JSON-shaped rule body so it can be re-compiled or re-hashed
// for the compiled-rule cache; compilation itself happens in
// internal/preparation, against a ruleeval.Cache shared across proposals.
type Rule struct {
	ModifierID string `json:"modifierId"`
	Raw        any    `json:"logic"`
}

// Jurisdiction is one retail-tax jurisdiction with its own rate and a
// deterministic application order.
type Jurisdiction struct {
	Code  string        `json:"code"`
	Order int           `json:"order"`
	Rate  money.Decimal `json:"rate"`
}

// TaxConfig configures how tax is computed in §4.3 step 8.
type TaxConfig struct {
	Mode          TaxMode        `json:"mode"`
	RetailRate    money.Decimal  `json:"retailRate"`
	UseTaxRate    money.Decimal  `json:"useTaxRate"`
	Jurisdictions []Jurisdiction `json:"jurisdictions,omitempty"`
	SchemaVersion string         `json:"schemaVersion"`
}

// GroupKey is the 8-attribute tuple modifiers are grouped by (§4.3.5).
type GroupKey struct {
	TaxSetting      TaxSetting      `json:"taxSetting"`
	Kind            ModifierKind    `json:"kind"`
	Category        string          `json:"category"`
	AffectsQuantity bool            `json:"affectsQuantity"`
	CostPercentage  string          `json:"costPercentage"` // decimal string or "" when nil
	DisplayMode     string          `json:"displayMode"`
	ApplicationType ApplicationType `json:"applicationType"`
	ProductID       string          `json:"productId"` // "null" when absent, per spec
}

// Group is a maximal set of modifiers sharing a GroupKey, with their
// values summed additively.
type Group struct {
	Key           GroupKey
	ModifierIDs   []string
	CombinedValue money.Decimal
	MinChainPrio  int
	MinCreatedAt  int64
}

// LineAllocation is one line item's share of a group's adjustment.
type LineAllocation struct {
	LineItemID string        `json:"lineItemId"`
	AmountQ7   money.Decimal `json:"amountQ7"`
}

// Adjustment is the emitted record of one applied group.
type Adjustment struct {
	GroupKey           GroupKey         `json:"groupKey"`
	ModifierIDs        []string         `json:"modifierIds"`
	CombinedValue      money.Decimal    `json:"combinedValue"`
	AmountQ7           money.Decimal    `json:"amountQ7"`
	PerLineAllocations []LineAllocation `json:"perLineAllocations"`
	ApplicationType    ApplicationType  `json:"applicationType"`
	TaxSetting         TaxSetting       `json:"taxSetting"`
}

// Rejection records why a modifier did not survive to application.
type Rejection struct {
	ModifierID string `json:"modifierId"`
	Reason     string `json:"reason"` // "missing_requirement" | "excluded_by:<id>" | "rule_failed" | "rule_eval_error"
}

// SubTax is one jurisdiction's or category's contribution to retail tax.
type SubTax struct {
	Code   string        `json:"code"`
	Rate   money.Decimal `json:"rate"`
	Amount money.Decimal `json:"amount"`
}

// Result is the canonical, fingerprintable output of the pure compute
// stage.
type Result struct {
	SubtotalQ2           money.Decimal  `json:"subtotalQ2"`
	ModifierTotalQ2      money.Decimal  `json:"modifierTotalQ2"`
	RetailTaxQ2          money.Decimal  `json:"retailTaxQ2"`
	CustomerGrandTotalQ2 money.Decimal  `json:"customerGrandTotalQ2"`
	UseTaxQ2             *money.Decimal `json:"useTaxQ2,omitempty"`
	InternalGrandTotalQ2 *money.Decimal `json:"internalGrandTotalQ2,omitempty"`

	// Q7 components retained for the audit row (§6 calc_audit columns).
	SubtotalQ7           money.Decimal  `json:"subtotalQ7"`
	TaxableBaseQ7        money.Decimal  `json:"taxableBaseQ7"`
	NonTaxableBaseQ7     money.Decimal  `json:"nonTaxableBaseQ7"`
	ModifierTotalQ7      money.Decimal  `json:"modifierTotalQ7"`
	RetailTaxQ7          money.Decimal  `json:"retailTaxQ7"`
	UseTaxQ7             *money.Decimal `json:"useTaxQ7,omitempty"`
	CustomerGrandTotalQ7 money.Decimal  `json:"customerGrandTotalQ7"`

	Adjustments []Adjustment `json:"adjustments"`
	Rejections  []Rejection  `json:"rejections,omitempty"`
	SubTaxes    []SubTax     `json:"subTaxes,omitempty"`
	TaxMode     TaxMode      `json:"taxMode"`
	Checksum    string       `json:"checksum"`
}

// CanonicalValue implements canonical.Canonicalizer so Result can be
// fingerprinted directly. Only the fields that define the result's
// identity participate — diagnostic-only fields never do.
func (r Result) CanonicalValue() any {
	adjustments := make([]any, len(r.Adjustments))
	for i, a := range r.Adjustments {
		allocs := make([]any, len(a.PerLineAllocations))
		for j, al := range a.PerLineAllocations {
			allocs[j] = map[string]any{
				"lineItemId": al.LineItemID,
				"amountQ7":   al.AmountQ7,
			}
		}
		adjustments[i] = map[string]any{
			"groupKey":        a.GroupKey.canonicalValue(),
			"amountQ7":        a.AmountQ7,
			"allocations":     allocs,
			"applicationType": string(a.ApplicationType),
			"taxSetting":      string(a.TaxSetting),
		}
	}
	rejections := make([]any, len(r.Rejections))
	for i, rj := range r.Rejections {
		rejections[i] = map[string]any{"modifierId": rj.ModifierID, "reason": rj.Reason}
	}
	subtaxes := make([]any, len(r.SubTaxes))
	for i, st := range r.SubTaxes {
		subtaxes[i] = map[string]any{"code": st.Code, "rate": st.Rate, "amount": st.Amount}
	}

	tree := map[string]any{
		"subtotalQ2":           r.SubtotalQ2,
		"modifierTotalQ2":       r.ModifierTotalQ2,
		"retailTaxQ2":           r.RetailTaxQ2,
		"customerGrandTotalQ2":  r.CustomerGrandTotalQ2,
		"subtotalQ7":            r.SubtotalQ7,
		"taxableBaseQ7":         r.TaxableBaseQ7,
		"nonTaxableBaseQ7":      r.NonTaxableBaseQ7,
		"modifierTotalQ7":       r.ModifierTotalQ7,
		"retailTaxQ7":           r.RetailTaxQ7,
		"customerGrandTotalQ7":  r.CustomerGrandTotalQ7,
		"adjustments":           adjustments,
		"rejections":            rejections,
		"subTaxes":              subtaxes,
		"taxMode":               string(r.TaxMode),
	}
	if r.UseTaxQ2 != nil {
		tree["useTaxQ2"] = *r.UseTaxQ2
	}
	if r.InternalGrandTotalQ2 != nil {
		tree["internalGrandTotalQ2"] = *r.InternalGrandTotalQ2
	}
	if r.UseTaxQ7 != nil {
		tree["useTaxQ7"] = *r.UseTaxQ7
	}
	return tree
}

func (k GroupKey) canonicalValue() any {
	return map[string]any{
		"taxSetting":      string(k.TaxSetting),
		"kind":            string(k.Kind),
		"category":        k.Category,
		"affectsQuantity": k.AffectsQuantity,
		"costPercentage":  k.CostPercentage,
		"displayMode":     k.DisplayMode,
		"applicationType": string(k.ApplicationType),
		"productId":       k.ProductID,
	}
}
