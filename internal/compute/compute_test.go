package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Victor-armando18/pricing-engine/internal/domain/money"
	"github.com/Victor-armando18/pricing-engine/internal/domain/pricing"
)

func d(s string) money.Decimal { return money.MustFromString(s) }

func baseConfig(mode pricing.TaxMode, retailRate, useTaxRate string) pricing.TaxConfig {
	return pricing.TaxConfig{
		Mode:          mode,
		RetailRate:    d(retailRate),
		UseTaxRate:    d(useTaxRate),
		SchemaVersion: "v1",
	}
}

func TestComputeSimpleTaxableSale(t *testing.T) {
	frozen := pricing.FrozenInput{
		ProposalID:    "p1",
		SchemaVersion: "v1",
		LineItems: []pricing.LineItem{
			{ID: "a", UnitPrice: d("100.00"), Quantity: d("2"), TaxSetting: pricing.Taxable},
		},
		Config: baseConfig(pricing.Retail, "0.10", "0"),
	}

	result, err := Compute(frozen)
	require.NoError(t, err)
	assert.Equal(t, "200.00", result.SubtotalQ2.String())
	assert.Equal(t, "20.00", result.RetailTaxQ2.String())
	assert.Equal(t, "220.00", result.CustomerGrandTotalQ2.String())
	assert.NotEmpty(t, result.Checksum)
}

func TestComputePercentageDiscount(t *testing.T) {
	frozen := pricing.FrozenInput{
		ProposalID:    "p1",
		SchemaVersion: "v1",
		LineItems: []pricing.LineItem{
			{ID: "a", UnitPrice: d("100.00"), Quantity: d("2"), TaxSetting: pricing.Taxable},
		},
		Modifiers: []pricing.Modifier{
			{ID: "d", Kind: pricing.KindPercentage, Value: d("-15"), ApplicationType: pricing.PreTax},
		},
		Config: baseConfig(pricing.Retail, "0.10", "0"),
	}

	result, err := Compute(frozen)
	require.NoError(t, err)
	assert.Equal(t, "-30.00", result.ModifierTotalQ2.String())
	assert.Equal(t, "17.00", result.RetailTaxQ2.String())
	assert.Equal(t, "187.00", result.CustomerGrandTotalQ2.String())
}

func TestComputeMixedTaxSettingAppliesPerPartition(t *testing.T) {
	frozen := pricing.FrozenInput{
		ProposalID:    "p1",
		SchemaVersion: "v1",
		LineItems: []pricing.LineItem{
			{ID: "a", UnitPrice: d("150.00"), Quantity: d("2"), TaxSetting: pricing.Taxable},
			{ID: "b", UnitPrice: d("75.00"), Quantity: d("3"), TaxSetting: pricing.NonTaxable},
		},
		Modifiers: []pricing.Modifier{
			{ID: "d", Kind: pricing.KindPercentage, Value: d("-10"), ApplicationType: pricing.PreTax},
			{ID: "f", Kind: pricing.KindFixed, Value: d("25.00"), ApplicationType: pricing.PostTax},
		},
		Config: baseConfig(pricing.Retail, "0.0875", "0"),
	}

	result, err := Compute(frozen)
	require.NoError(t, err)
	// d and f both default (via "inherit", no lineItemId) to the taxable
	// partition, so only line "a" is touched by either — the taxable
	// base after the pre-tax discount is 270.00, matching the spec's
	// worked example exactly even though this suite's chosen reading of
	// "base restricted to the group's taxSetting partition" (§4.3 step 7)
	// keeps d's adjustment inside that partition rather than
	// re-distributing it across the non-taxable line too.
	assert.Equal(t, "525.00", result.SubtotalQ2.String())
	assert.Equal(t, "270.00", result.TaxableBaseQ7.RoundQ2().String())
	assert.Equal(t, "23.63", result.RetailTaxQ2.String())
}

func TestComputeMarginModifier(t *testing.T) {
	frozen := pricing.FrozenInput{
		ProposalID:    "p1",
		SchemaVersion: "v1",
		LineItems: []pricing.LineItem{
			{ID: "li1", UnitPrice: d("100.00"), Quantity: d("1"), Cost: costPtr("60.00"), TaxSetting: pricing.Taxable},
		},
		Modifiers: []pricing.Modifier{
			{ID: "m", Kind: pricing.KindMargin, Value: d("50"), ApplicationType: pricing.PreTax},
		},
		Config: baseConfig(pricing.Retail, "0", "0"),
	}

	result, err := Compute(frozen)
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, "20.00", result.Adjustments[0].AmountQ7.RoundQ2().String())
	assert.Equal(t, "120.00", result.CustomerGrandTotalQ2.String())
}

func TestComputeDependencyExclusion(t *testing.T) {
	frozen := pricing.FrozenInput{
		ProposalID:    "p1",
		SchemaVersion: "v1",
		LineItems: []pricing.LineItem{
			{ID: "a", UnitPrice: d("100.00"), Quantity: d("1"), TaxSetting: pricing.Taxable},
		},
		Modifiers: []pricing.Modifier{
			{ID: "m1", Kind: pricing.KindPercentage, Value: d("-5"), ApplicationType: pricing.PreTax},
			{ID: "m2", Kind: pricing.KindPercentage, Value: d("-5"), ApplicationType: pricing.PreTax},
		},
		Dependencies: []pricing.Dependency{
			{ModifierID: "m2", DependsOn: "m1", Type: pricing.Excludes},
		},
		Config: baseConfig(pricing.Retail, "0", "0"),
	}

	result, err := Compute(frozen)
	require.NoError(t, err)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, "m2", result.Rejections[0].ModifierID)
	assert.Equal(t, "excluded_by:m1", result.Rejections[0].Reason)
}

func TestComputeUseTaxMode(t *testing.T) {
	frozen := pricing.FrozenInput{
		ProposalID:    "p1",
		SchemaVersion: "v1",
		LineItems: []pricing.LineItem{
			{
				ID: "a", UnitPrice: d("0.00"), Quantity: d("1"), Cost: costPtr("1000.00"),
				TaxSetting: pricing.Taxable, UseTaxEligible: true, VendorTaxCollected: false,
			},
		},
		Config: baseConfig(pricing.UseTax, "0", "0.08"),
	}

	result, err := Compute(frozen)
	require.NoError(t, err)
	require.NotNil(t, result.UseTaxQ2)
	require.NotNil(t, result.InternalGrandTotalQ2)
	assert.Equal(t, "80.00", result.UseTaxQ2.String())
	assert.Equal(t, "0.00", result.CustomerGrandTotalQ2.String())
	assert.Equal(t, "80.00", result.InternalGrandTotalQ2.String())
}

func TestComputeRejectsOversizedLineItems(t *testing.T) {
	lineItems := make([]pricing.LineItem, MaxLineItems+1)
	for i := range lineItems {
		lineItems[i] = pricing.LineItem{ID: itoaTest(i), UnitPrice: d("1.00"), Quantity: d("1"), TaxSetting: pricing.Taxable}
	}
	frozen := pricing.FrozenInput{
		SchemaVersion: "v1",
		LineItems:     lineItems,
		Config:        baseConfig(pricing.Retail, "0", "0"),
	}

	_, err := Compute(frozen)
	require.Error(t, err)
}

func costPtr(s string) *money.Decimal {
	v := d(s)
	return &v
}

func itoaTest(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "li0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return "li" + string(b)
}
