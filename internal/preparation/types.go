// Package preparation implements §4.2 of the specification: fetching a
// consistent snapshot of one proposal's inputs, normalising them into
// canonical form, compiling and safely evaluating modifier rules, and
// coalescing concurrent callers so a stampede of identical requests
// triggers at most one fetch.
package preparation

import (
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// DeltaType selects how a cache hit is patched rather than rebuilt.
type DeltaType string

const (
	DeltaModifierOnly DeltaType = "MODIFIER_ONLY"
	DeltaLineItem     DeltaType = "LINE_ITEM"
	DeltaOther        DeltaType = "OTHER"
)

// Delta describes what changed relative to a previously prepared input.
// Changes is a JSON Patch (RFC 6902) document applied to the cached
// frozen input's JSON projection on a cache hit.
type Delta struct {
	Type    DeltaType
	Changes []byte // RFC 6902 JSON Patch document
}

// RawLineItem, RawModifier, RawDependency, and RawRule are the
// wire-shaped inputs before normalisation — defaults unfilled, numeric
// fields possibly in exponential notation, IDs possibly duplicated.
// Normalise turns these into pricing.LineItem etc.
type RawLineItem struct {
	ID                 string  `json:"id"`
	UnitPrice          string  `json:"unitPrice"`
	Quantity           string  `json:"quantity"`
	Cost               *string `json:"cost,omitempty"`
	TaxSetting         string  `json:"taxSetting"`
	UseTaxEligible     bool    `json:"useTaxEligible"`
	VendorTaxCollected bool    `json:"vendorTaxCollected"`
}

type RawModifier struct {
	ID                  string  `json:"id"`
	Kind                string  `json:"kind"`
	Value               string  `json:"value"`
	TaxSetting          string  `json:"taxSetting,omitempty"`
	Category            string  `json:"category,omitempty"`
	AffectsQuantity     bool    `json:"affectsQuantity,omitempty"`
	CostPercentage      *string `json:"costPercentage,omitempty"`
	DisplayMode         string  `json:"displayMode,omitempty"`
	ApplicationType     string  `json:"applicationType,omitempty"`
	ProductID           *string `json:"productId,omitempty"`
	ChainPriority       *int    `json:"chainPriority,omitempty"`
	LineItemID          *string `json:"lineItemId,omitempty"`
	CreatedAt           int64   `json:"createdAt,omitempty"`
	MissingCostStrategy string  `json:"missingCostStrategy,omitempty"`
}

type RawDependency struct {
	ModifierID string `json:"modifierId"`
	DependsOn  string `json:"dependsOn"`
	Type       string `json:"type"`
}

type RawRule struct {
	ModifierID string `json:"modifierId"`
	Logic      any    `json:"logic"`
}

type RawJurisdiction struct {
	Code  string `json:"code"`
	Order int    `json:"order"`
	Rate  string `json:"rate"`
}

type RawTaxConfig struct {
	Mode          string            `json:"mode"`
	RetailRate    string            `json:"retailRate,omitempty"`
	UseTaxRate    string            `json:"useTaxRate,omitempty"`
	Jurisdictions []RawJurisdiction `json:"jurisdictions,omitempty"`
	SchemaVersion string            `json:"schemaVersion"`
}

// Request is the decoded §6 CalculateRequest.
type Request struct {
	ProposalID   string
	Tenant       string
	LineItems    []RawLineItem
	Modifiers    []RawModifier
	Dependencies []RawDependency
	Rules        []RawRule
	Config       RawTaxConfig
	Changes      *Delta
	ProposalMeta map[string]any
	CustomerMeta map[string]any
	ProjectMeta  map[string]any
}

// Violation collects one normalisation/validation failure for §4.2's
// "Failures raise INVALID_INPUT with a list of violations" contract.
type Violation struct {
	Field  string
	Reason string
}

// Snapshot is what the data fetcher returns: the raw, DB-collation-order
// rows for one proposal, fetched inside a single REPEATABLE READ
// transaction.
type Snapshot struct {
	ProposalID   string
	Tenant       string
	LineItems    []RawLineItem
	Modifiers    []RawModifier
	Dependencies []RawDependency
	Rules        []RawRule
	Config       RawTaxConfig
	ProposalMeta map[string]any
	CustomerMeta map[string]any
	ProjectMeta  map[string]any
}

var _ = pricing.FrozenInput{} // preparation's whole job is to produce one of these
