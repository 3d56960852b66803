package preparation

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// frozenInputDoc is the JSON projection a Delta's RFC 6902 patch is
// applied against. It mirrors pricing.FrozenInput field-for-field; the
// teacher applies the same original-struct -> JSON -> patch -> struct
// round trip in ApplyOrderPatch, just against a different domain type.
type frozenInputDoc struct {
	ProposalID    string               `json:"proposalId"`
	Tenant        string               `json:"tenant"`
	SchemaVersion string               `json:"schemaVersion"`
	LineItems     []pricing.LineItem   `json:"lineItems"`
	Modifiers     []pricing.Modifier   `json:"modifiers"`
	Dependencies  []pricing.Dependency `json:"dependencies"`
	Rules         []pricing.Rule       `json:"rules"`
	Config        pricing.TaxConfig    `json:"config"`
	ProposalMeta  map[string]any       `json:"proposalMeta"`
	CustomerMeta  map[string]any       `json:"customerMeta"`
	ProjectMeta   map[string]any       `json:"projectMeta"`
}

// ApplyDelta patches a previously frozen input with an RFC 6902 JSON
// Patch document and re-freezes the result, producing a brand-new
// FrozenInput (with its own fingerprint) rather than mutating cached in
// place — nothing in this module ever mutates a FrozenInput after
// construction.
func ApplyDelta(cached pricing.FrozenInput, delta Delta) (pricing.FrozenInput, error) {
	if delta.Type == "" || len(delta.Changes) == 0 {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: empty delta")
	}

	doc := frozenInputDoc{
		ProposalID: cached.ProposalID, Tenant: cached.Tenant, SchemaVersion: cached.SchemaVersion,
		LineItems: cached.LineItems, Modifiers: cached.Modifiers, Dependencies: cached.Dependencies,
		Rules: cached.Rules, Config: cached.Config,
		ProposalMeta: cached.ProposalMeta, CustomerMeta: cached.CustomerMeta, ProjectMeta: cached.ProjectMeta,
	}
	original, err := json.Marshal(doc)
	if err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: marshal cached input: %w", err)
	}

	patch, err := jsonpatch.DecodePatch(delta.Changes)
	if err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: decode delta patch: %w", err)
	}
	patched, err := patch.Apply(original)
	if err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: apply delta patch: %w", err)
	}

	var updated frozenInputDoc
	if err := json.Unmarshal(patched, &updated); err != nil {
		return pricing.FrozenInput{}, fmt.Errorf("preparation: unmarshal patched input: %w", err)
	}

	return Freeze(
		updated.ProposalID, updated.Tenant, updated.SchemaVersion,
		updated.LineItems, updated.Modifiers, updated.Dependencies, updated.Rules, updated.Config,
		updated.ProposalMeta, updated.CustomerMeta, updated.ProjectMeta,
	)
}
