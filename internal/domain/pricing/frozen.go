package pricing

// FrozenInput is the single owned, immutable value preparation produces
// and every downstream stage only ever reads through (§4.2, design note
// "Deep mutation isolation"). Nothing downstream of preparation holds a
// mutable reference into it — internal/preparation's freezer is the only
// code in the module allowed to construct one, via NewFrozenInput.
type FrozenInput struct {
	ProposalID    string
	Tenant        string
	SchemaVersion string
	LineItems     []LineItem
	Modifiers     []Modifier
	Dependencies  []Dependency
	Rules         []Rule
	Config        TaxConfig
	ProposalMeta  map[string]any // for rule evaluation's "proposal.*" context
	CustomerMeta  map[string]any // "customer.*"
	ProjectMeta   map[string]any // "project.*"
	Fingerprint   string         // fingerprint of the request sans `changes`, used as the cache key
}

// NewFrozenInput builds a FrozenInput from already-normalised,
// already-validated slices. It copies every slice so the caller's
// backing arrays can never alias into the frozen value — the deep-freeze
// guarantee itself (reflection-walking every nested pointer) is applied
// one layer up, in internal/preparation, using copystructure; this
// constructor is the last line of defense for the slice headers
// themselves.
func NewFrozenInput(
	proposalID, tenant, schemaVersion string,
	lineItems []LineItem,
	modifiers []Modifier,
	dependencies []Dependency,
	rules []Rule,
	config TaxConfig,
	proposalMeta, customerMeta, projectMeta map[string]any,
	fp string,
) FrozenInput {
	return FrozenInput{
		ProposalID:    proposalID,
		Tenant:        tenant,
		SchemaVersion: schemaVersion,
		LineItems:     append([]LineItem(nil), lineItems...),
		Modifiers:     append([]Modifier(nil), modifiers...),
		Dependencies:  append([]Dependency(nil), dependencies...),
		Rules:         append([]Rule(nil), rules...),
		Config:        config,
		ProposalMeta:  proposalMeta,
		CustomerMeta:  customerMeta,
		ProjectMeta:   projectMeta,
		Fingerprint:   fp,
	}
}
