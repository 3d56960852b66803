package compute

import (
	"sort"
	"strings"

	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricingerr"
)

// resolveTaxSetting implements §4.3 step 2: a modifier's own taxSetting
// wins unless it is "inherit", in which case it takes its named line
// item's taxSetting, or defaults to taxable when it names none.
func resolveTaxSetting(m pricing.Modifier, lineByID map[string]pricing.LineItem) pricing.TaxSetting {
	if m.TaxSetting != pricing.Inherit && m.TaxSetting != "" {
		return m.TaxSetting
	}
	if m.LineItemID != nil {
		if li, ok := lineByID[*m.LineItemID]; ok {
			return li.TaxSetting
		}
	}
	return pricing.Taxable
}

// groupKeyOf builds the 8-attribute tuple of §4.3 step 5.
func groupKeyOf(m pricing.Modifier, resolvedTaxSetting pricing.TaxSetting) pricing.GroupKey {
	costPct := ""
	if m.CostPercentage != nil {
		costPct = m.CostPercentage.String()
	}
	productID := "null"
	if m.ProductID != nil {
		productID = *m.ProductID
	}
	return pricing.GroupKey{
		TaxSetting:      resolvedTaxSetting,
		Kind:            m.Kind,
		Category:        m.Category,
		AffectsQuantity: m.AffectsQuantity,
		CostPercentage:  costPct,
		DisplayMode:     m.DisplayMode,
		ApplicationType: m.ApplicationType,
		ProductID:       productID,
	}
}

func groupKeyString(k pricing.GroupKey) string {
	var b strings.Builder
	b.WriteString(string(k.TaxSetting))
	b.WriteByte('|')
	b.WriteString(string(k.Kind))
	b.WriteByte('|')
	b.WriteString(k.Category)
	b.WriteByte('|')
	if k.AffectsQuantity {
		b.WriteByte('1')
	} else {
		b.WriteByte('0')
	}
	b.WriteByte('|')
	b.WriteString(k.CostPercentage)
	b.WriteByte('|')
	b.WriteString(k.DisplayMode)
	b.WriteByte('|')
	b.WriteString(string(k.ApplicationType))
	b.WriteByte('|')
	b.WriteString(k.ProductID)
	return b.String()
}

// buildGroups implements §4.3 step 5: modifiers sharing an identical
// 8-attribute tuple are merged into one group, their values summed
// additively.
func buildGroups(modifiers []pricing.Modifier, resolvedTaxSetting map[string]pricing.TaxSetting) []pricing.Group {
	index := make(map[string]int)
	var groups []pricing.Group

	for _, m := range modifiers {
		key := groupKeyOf(m, resolvedTaxSetting[m.ID])
		ks := groupKeyString(key)
		if i, ok := index[ks]; ok {
			g := &groups[i]
			g.ModifierIDs = append(g.ModifierIDs, m.ID)
			g.CombinedValue = g.CombinedValue.Add(m.Value)
			if m.ChainPriority < g.MinChainPrio {
				g.MinChainPrio = m.ChainPriority
			}
			if m.CreatedAt < g.MinCreatedAt {
				g.MinCreatedAt = m.CreatedAt
			}
			continue
		}
		index[ks] = len(groups)
		groups = append(groups, pricing.Group{
			Key:           key,
			ModifierIDs:   []string{m.ID},
			CombinedValue: m.Value,
			MinChainPrio:  m.ChainPriority,
			MinCreatedAt:  m.CreatedAt,
		})
	}
	return groups
}

// Ordinal ranks for the fixed vocabularies §4.3 step 6 orders by.
// Unrecognised values sort after every named one, so an operator adding a
// new category doesn't silently crash ordering — it just sorts last,
// deterministically, until someone updates this table.
var categoryRank = map[string]int{
	"discount": 0, "rebate": 1, "fee": 2, "bonus": 3, "adjustment": 4,
}

var kindRank = map[pricing.ModifierKind]int{
	pricing.KindPercentage: 0, pricing.KindFixed: 1, pricing.KindMargin: 2,
	pricing.KindQuantity: 3, pricing.KindCostAdjustment: 4,
}

var applicationCohortRank = map[pricing.ApplicationType]int{
	pricing.PreTax: 0, pricing.Cost: 1, pricing.PostTax: 2,
}

func rankOf[K ~string](m map[K]int, v K) int {
	if r, ok := m[v]; ok {
		return r
	}
	return len(m) + 1
}

// orderGroups sorts groups per §4.3 step 6's six-level comparator.
func orderGroups(groups []pricing.Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]

		ra, rb := rankOf(applicationCohortRank, a.Key.ApplicationType), rankOf(applicationCohortRank, b.Key.ApplicationType)
		if ra != rb {
			return ra < rb
		}
		ca, cb := rankOf(categoryRank, a.Key.Category), rankOf(categoryRank, b.Key.Category)
		if ca != cb {
			return ca < cb
		}
		ka, kb := rankOf(kindRank, a.Key.Kind), rankOf(kindRank, b.Key.Kind)
		if ka != kb {
			return ka < kb
		}
		if a.MinChainPrio != b.MinChainPrio {
			return a.MinChainPrio < b.MinChainPrio
		}
		if a.MinCreatedAt != b.MinCreatedAt {
			return a.MinCreatedAt < b.MinCreatedAt
		}
		return groupKeyString(a.Key) < groupKeyString(b.Key)
	})
}

func checkGroupCeiling(groups []pricing.Group) error {
	if len(groups) > HardMaxGroups {
		return pricingerr.Newf(pricingerr.ResourceLimit, "group count %d exceeds hard ceiling %d", len(groups), HardMaxGroups)
	}
	return nil
}
