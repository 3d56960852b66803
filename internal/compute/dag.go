package compute

import (
	"sort"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
)

// resolveDependencies implements §4.3 step 3: build the modifier DAG from
// REQUIRES edges, detect cycles, topologically sort with ties broken by
// chainPriority then id, drop modifiers whose REQUIRES target is missing
// or itself dropped, and resolve EXCLUDES pairs so the first accepted
// modifier in topological order wins.
func resolveDependencies(modifiers []pricing.Modifier, dependencies []pricing.Dependency) ([]pricing.Modifier, []pricing.Rejection, error) {
	byID := make(map[string]pricing.Modifier, len(modifiers))
	for _, m := range modifiers {
		byID[m.ID] = m
	}

	// indegree[m] counts REQUIRES edges m depends on; requiredBy[d] lists
	// modifiers that require d, so d's completion can unblock them.
	indegree := make(map[string]int, len(modifiers))
	requiredBy := make(map[string][]string, len(modifiers))
	requires := make(map[string][]string, len(modifiers)) // modifierID -> its REQUIRES targets
	excludes := make(map[string][]string, len(modifiers))  // modifierID -> modifiers it excludes or is excluded by

	for _, m := range modifiers {
		indegree[m.ID] = 0
	}
	for _, d := range dependencies {
		switch d.Type {
		case pricing.Requires:
			if _, ok := byID[d.ModifierID]; !ok {
				continue
			}
			indegree[d.ModifierID]++
			requiredBy[d.DependsOn] = append(requiredBy[d.DependsOn], d.ModifierID)
			requires[d.ModifierID] = append(requires[d.ModifierID], d.DependsOn)
		case pricing.Excludes:
			excludes[d.ModifierID] = append(excludes[d.ModifierID], d.DependsOn)
			excludes[d.DependsOn] = append(excludes[d.DependsOn], d.ModifierID)
		}
	}

	order, err := topoSort(modifiers, indegree, requiredBy)
	if err != nil {
		return nil, nil, err
	}
	if err := checkDependencyDepth(order, requires); err != nil {
		return nil, nil, err
	}

	var accepted []pricing.Modifier
	var rejections []pricing.Rejection
	acceptedSet := make(map[string]bool, len(modifiers))
	winnerOf := make(map[string]string)

	for _, id := range order {
		m := byID[id]

		missing := false
		for _, target := range requires[id] {
			if !acceptedSet[target] {
				missing = true
				break
			}
		}
		if missing {
			rejections = append(rejections, pricing.Rejection{ModifierID: id, Reason: "missing_requirement"})
			continue
		}

		excludedBy := ""
		for _, other := range excludes[id] {
			if w, ok := winnerOf[other]; ok {
				excludedBy = w
				break
			}
			if acceptedSet[other] {
				excludedBy = other
				break
			}
		}
		if excludedBy != "" {
			rejections = append(rejections, pricing.Rejection{ModifierID: id, Reason: "excluded_by:" + excludedBy})
			continue
		}

		acceptedSet[id] = true
		winnerOf[id] = id
		accepted = append(accepted, m)
	}

	return accepted, rejections, nil
}

// topoSort runs Kahn's algorithm over the REQUIRES graph, breaking ties
// among simultaneously-ready nodes by chainPriority ascending then id
// ascending, per §4.3.6. A non-empty leftover set after the algorithm
// terminates means a cycle exists.
func topoSort(modifiers []pricing.Modifier, indegree map[string]int, requiredBy map[string][]string) ([]string, error) {
	byID := make(map[string]pricing.Modifier, len(modifiers))
	for _, m := range modifiers {
		byID[m.ID] = m
	}

	remaining := make(map[string]int, len(indegree))
	for k, v := range indegree {
		remaining[k] = v
	}

	ready := make([]string, 0, len(modifiers))
	for _, m := range modifiers {
		if remaining[m.ID] == 0 {
			ready = append(ready, m.ID)
		}
	}

	order := make([]string, 0, len(modifiers))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			a, b := byID[ready[i]], byID[ready[j]]
			if a.ChainPriority != b.ChainPriority {
				return a.ChainPriority < b.ChainPriority
			}
			return a.ID < b.ID
		})
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range requiredBy[next] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) != len(modifiers) {
		return nil, pricingerr.New(pricingerr.InvalidInput, "modifier dependency graph contains a cycle")
	}
	return order, nil
}

// checkDependencyDepth rejects a REQUIRES chain longer than
// MaxDependencyDepth. order is already topologically sorted, so each
// node's dependencies have a known depth by the time the node itself is
// visited.
func checkDependencyDepth(order []string, requires map[string][]string) error {
	depth := make(map[string]int, len(order))
	for _, id := range order {
		d := 1
		for _, target := range requires[id] {
			if depth[target]+1 > d {
				d = depth[target] + 1
			}
		}
		depth[id] = d
		if d > MaxDependencyDepth {
			return pricingerr.Newf(pricingerr.ResourceLimit, "modifier dependency chain exceeds max depth %d", MaxDependencyDepth)
		}
	}
	return nil
}
