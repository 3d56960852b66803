package compute

import (
	"sort"

	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

// taxResult carries everything §4.3 step 8 computes.
type taxResult struct {
	RetailTaxQ7 money.Decimal
	UseTaxQ7    *money.Decimal
	SubTaxes    []pricing.SubTax
}

// computeTax implements §4.3 step 8. taxableBase is the taxable
// partition total after the pre-tax groups; lineItems is the frozen
// input's original line items, used for the use-tax base which is
// computed from cost, not from price.
func computeTax(config pricing.TaxConfig, taxableBase money.Decimal, lineItems []pricing.LineItem) taxResult {
	var result taxResult

	if config.Mode == pricing.Retail || config.Mode == pricing.Mixed {
		if len(config.Jurisdictions) == 0 {
			result.RetailTaxQ7 = taxableBase.Mul(config.RetailRate).RoundQ7()
		} else {
			jurisdictions := append([]pricing.Jurisdiction(nil), config.Jurisdictions...)
			sort.Slice(jurisdictions, func(i, j int) bool {
				if jurisdictions[i].Order != jurisdictions[j].Order {
					return jurisdictions[i].Order < jurisdictions[j].Order
				}
				return jurisdictions[i].Code < jurisdictions[j].Code
			})
			total := money.Zero()
			for _, j := range jurisdictions {
				amount := taxableBase.Mul(j.Rate).RoundQ7()
				total = total.Add(amount)
				result.SubTaxes = append(result.SubTaxes, pricing.SubTax{Code: j.Code, Rate: j.Rate, Amount: amount})
			}
			result.RetailTaxQ7 = total
		}
	} else {
		result.RetailTaxQ7 = money.Zero()
	}

	if config.Mode == pricing.UseTax || config.Mode == pricing.Mixed {
		base := money.Zero()
		for _, li := range lineItems {
			if !li.UseTaxEligible || li.VendorTaxCollected {
				continue
			}
			cost := money.Zero()
			if li.Cost != nil {
				cost = *li.Cost
			}
			base = base.Add(cost.Mul(li.Quantity).RoundQ7())
		}
		useTax := base.Mul(config.UseTaxRate).RoundQ7()
		result.UseTaxQ7 = &useTax
	}

	return result
}
