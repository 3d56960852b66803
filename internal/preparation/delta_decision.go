package preparation

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// Tunables for §4.2's "Delta decision": the policy that discards an
// otherwise-successful delta patch in favour of a full rebuild. Cache age
// is not one of the checks implemented here — the FrozenInputCache's own
// TTL already refuses to return an expired entry from GetLastForProposal,
// so a stale cache never reaches ApplyDelta in the first place.
const (
	deltaChangedItemRatioLimit = 0.30
	deltaComplexityScoreLimit  = 5
	deltaCascadeDepthLimit     = 3
	deltaFailureCountLimit     = 3
	deltaFailureWindow         = 5 * time.Minute
)

// shouldForceRebuild evaluates five legs of §4.2's delta decision against
// a delta that has already been applied successfully: schema version
// drift, changed-item ratio, synthetic complexity, the dependency cascade
// reachable from whatever changed, and whether dependencies or rules
// themselves moved. The seventh leg (recent failed attempts) is checked by
// the caller before ApplyDelta ever runs, since it depends on history
// rather than this one patch's outcome; cache age is the remaining leg.
func shouldForceRebuild(cached, updated pricing.FrozenInput, delta Delta) (bool, string) {
	if cached.SchemaVersion != updated.SchemaVersion {
		return true, "schema version changed"
	}

	changedLines, changedMods := changedItemSets(cached, updated)
	if total := len(cached.LineItems) + len(cached.Modifiers); total > 0 {
		ratio := float64(len(changedLines)+len(changedMods)) / float64(total)
		if ratio > deltaChangedItemRatioLimit {
			return true, "changed item ratio exceeds 30%"
		}
	}

	if complexityScore(delta) > deltaComplexityScoreLimit {
		return true, "delta complexity score exceeds 5"
	}

	if depth := cascadeDepth(cached.Dependencies, changedMods); depth > deltaCascadeDepthLimit {
		return true, "dependency cascade depth exceeds 3"
	}

	if !dependenciesEqual(cached.Dependencies, updated.Dependencies) || !rulesEqual(cached.Rules, updated.Rules) {
		return true, "dependencies or rules changed"
	}

	return false, ""
}

// changedItemSets returns the set of line item and modifier IDs whose
// normalised content differs between cached and updated, counting an ID
// present in only one side as changed too (added or removed).
func changedItemSets(cached, updated pricing.FrozenInput) (map[string]bool, map[string]bool) {
	changedLines := map[string]bool{}
	cachedLines := make(map[string]string, len(cached.LineItems))
	for _, li := range cached.LineItems {
		cachedLines[li.ID] = lineItemSignature(li)
	}
	seenLines := make(map[string]bool, len(updated.LineItems))
	for _, li := range updated.LineItems {
		seenLines[li.ID] = true
		if sig, ok := cachedLines[li.ID]; !ok || sig != lineItemSignature(li) {
			changedLines[li.ID] = true
		}
	}
	for id := range cachedLines {
		if !seenLines[id] {
			changedLines[id] = true
		}
	}

	changedMods := map[string]bool{}
	cachedMods := make(map[string]string, len(cached.Modifiers))
	for _, m := range cached.Modifiers {
		cachedMods[m.ID] = modifierSignature(m)
	}
	seenMods := make(map[string]bool, len(updated.Modifiers))
	for _, m := range updated.Modifiers {
		seenMods[m.ID] = true
		if sig, ok := cachedMods[m.ID]; !ok || sig != modifierSignature(m) {
			changedMods[m.ID] = true
		}
	}
	for id := range cachedMods {
		if !seenMods[id] {
			changedMods[id] = true
		}
	}

	return changedLines, changedMods
}

func lineItemSignature(li pricing.LineItem) string {
	cost := ""
	if li.Cost != nil {
		cost = li.Cost.String()
	}
	return strings.Join([]string{
		li.ID, li.UnitPrice.String(), li.Quantity.String(), cost, string(li.TaxSetting),
		strconv.FormatBool(li.UseTaxEligible), strconv.FormatBool(li.VendorTaxCollected),
	}, "|")
}

func modifierSignature(m pricing.Modifier) string {
	costPct := ""
	if m.CostPercentage != nil {
		costPct = m.CostPercentage.String()
	}
	productID := ""
	if m.ProductID != nil {
		productID = *m.ProductID
	}
	lineItemID := ""
	if m.LineItemID != nil {
		lineItemID = *m.LineItemID
	}
	return strings.Join([]string{
		m.ID, string(m.Kind), m.Value.String(), string(m.TaxSetting), m.Category,
		strconv.FormatBool(m.AffectsQuantity), costPct, m.DisplayMode, string(m.ApplicationType),
		productID, strconv.Itoa(m.ChainPriority), lineItemID, strconv.FormatInt(m.CreatedAt, 10),
		string(m.MissingCostStrategy),
	}, "|")
}

// complexityScore is the "synthetic delta complexity score" the spec
// names without defining precisely: the RFC 6902 patch's operation count,
// weighted by how deep into the document each operation reaches, so a
// handful of top-level replacements score lower than the same count of
// deeply nested ones.
func complexityScore(delta Delta) int {
	var ops []struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(delta.Changes, &ops); err != nil {
		return 0
	}
	score := 0
	for _, op := range ops {
		segments := strings.Count(op.Path, "/")
		if segments < 1 {
			segments = 1
		}
		score += segments
	}
	return score
}

// cascadeDepth walks the modifier dependency DAG outward from the given
// set of changed modifier IDs, following "depends on me" edges, and
// returns the deepest chain of modifiers reachable from any changed one.
func cascadeDepth(deps []pricing.Dependency, changed map[string]bool) int {
	if len(changed) == 0 {
		return 0
	}
	dependents := map[string][]string{}
	for _, d := range deps {
		dependents[d.DependsOn] = append(dependents[d.DependsOn], d.ModifierID)
	}

	visited := make(map[string]int, len(changed))
	queue := make([]string, 0, len(changed))
	for id := range changed {
		visited[id] = 0
		queue = append(queue, id)
	}

	maxDepth := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := visited[cur]
		if depth > maxDepth {
			maxDepth = depth
		}
		for _, next := range dependents[cur] {
			if _, ok := visited[next]; !ok {
				visited[next] = depth + 1
				queue = append(queue, next)
			}
		}
	}
	return maxDepth
}

func dependenciesEqual(a, b []pricing.Dependency) bool {
	return canonicalJSON(a) == canonicalJSON(b)
}

func rulesEqual(a, b []pricing.Rule) bool {
	return canonicalJSON(a) == canonicalJSON(b)
}

func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
