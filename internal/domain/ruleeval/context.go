package ruleeval

// AllowedRoots is the fixed allow-list of field-path prefixes a compiled
// rule may address, per §4.2. Every FieldPath compiled from raw input must
// have its first segment in this set.
var AllowedRoots = map[string]bool{
	"proposal":          true,
	"computed":          true,
	"customer":          true,
	"project":           true,
	"running":           true,
	"evaluationContext": true,
}

// Context is the read-only, tagged-union view a compiled rule evaluates
// against. Each section is an arbitrary nested map; paths are resolved by
// walking map[string]any, never by reflecting over a Go struct, so the
// surface a rule can observe is exactly what the preparation stage chose
// to put here.
type Context struct {
	Proposal          map[string]any
	Computed          map[string]any
	Customer          map[string]any
	Project           map[string]any
	Running           map[string]any
	EvaluationContext map[string]any
}

// missing is the sentinel returned for any path that doesn't resolve.
// Evaluation never treats a missing path as an error — only as false in
// a boolean context and, in a comparison, as equal only to another
// missing value, with every ordering comparison against it false.
type missing struct{}

var missingValue = missing{}

// Resolve walks path against the matching section of ctx. path[0] must be
// one of AllowedRoots (the compiler already guarantees this for any
// FieldPath it produced, but Resolve re-checks defensively since nothing
// prevents a hand-built Node from skipping compilation).
func (ctx *Context) Resolve(path []string) any {
	if len(path) == 0 || !AllowedRoots[path[0]] {
		return missingValue
	}
	var section map[string]any
	switch path[0] {
	case "proposal":
		section = ctx.Proposal
	case "computed":
		section = ctx.Computed
	case "customer":
		section = ctx.Customer
	case "project":
		section = ctx.Project
	case "running":
		section = ctx.Running
	case "evaluationContext":
		section = ctx.EvaluationContext
	}
	var cur any = section
	for _, segment := range path[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return missingValue
		}
		v, ok := m[segment]
		if !ok {
			return missingValue
		}
		cur = v
	}
	if cur == nil {
		return missingValue
	}
	return cur
}
