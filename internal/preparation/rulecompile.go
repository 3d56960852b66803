package preparation

import (
	"github.com/Victor-armando18/pricing-engine/internal/domain/fingerprint"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
	"github.com/Victor-armando18/pricing-engine/internal/domain/ruleeval"
)

// RuleCompiler wraps the shared ruleeval.Cache with the
// (tenantId, contentHash, version) keying §4.2 specifies, so the same
// rule body compiled for one proposal is never recompiled for another
// proposal in the same tenant and rule-pack version.
type RuleCompiler struct {
	cache *ruleeval.Cache
}

// NewRuleCompiler constructs a compiler backed by cache. Passing the same
// *ruleeval.Cache to every RuleCompiler in the process is what makes the
// cache actually shared across concurrent proposals.
func NewRuleCompiler(cache *ruleeval.Cache) *RuleCompiler {
	return &RuleCompiler{cache: cache}
}

// CompileAll compiles every rule in rules, keyed by tenant and the
// rule-pack version carried in config. A compile failure for one rule is
// reported as a violation against that modifier's rule rather than
// failing the whole batch — per §7 a RULE_COMPILE_ERROR is scoped to the
// modifier it came from.
func (c *RuleCompiler) CompileAll(tenant string, version string, rules []pricing.Rule) (map[string]*ruleeval.CompiledRule, []Violation) {
	compiled := make(map[string]*ruleeval.CompiledRule, len(rules))
	var violations []Violation
	for _, r := range rules {
		fp, err := fingerprint.Of(canonicalizeRule(r.Raw))
		if err != nil {
			violations = append(violations, Violation{
				Field:  "rules[" + r.ModifierID + "]",
				Reason: "could not fingerprint rule body: " + err.Error(),
			})
			continue
		}
		key := ruleeval.CacheKey{TenantID: tenant, ContentHash: string(fp), Version: version}
		rule, err := c.cache.GetOrCompile(key, r.Raw)
		if err != nil {
			violations = append(violations, Violation{
				Field:  "rules[" + r.ModifierID + "]",
				Reason: errMessage(err),
			})
			continue
		}
		compiled[r.ModifierID] = rule
	}
	return compiled, violations
}

// canonicalizeRule wraps a raw rule body so fingerprint.Of can hash it
// without requiring rule bodies to implement canonical.Canonicalizer
// themselves — rule bodies are already plain JSON-shaped values
// (map[string]any / []any / literals), which canonical.Encode accepts
// directly.
func canonicalizeRule(raw any) any { return raw }

func errMessage(err error) string {
	if pe, ok := err.(*pricingerr.Error); ok {
		return pe.Message
	}
	return err.Error()
}
