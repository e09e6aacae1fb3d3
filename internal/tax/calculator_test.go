package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/pos-cart/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func caRules() []Rule {
	return []Rule{
		{Label: "State Tax", Country: "US", State: "CA", Rate: dec("0.0725")},
		{Label: "Local Tax", Country: "US", State: "CA", Rate: dec("0.01")},
		{Label: "State Tax", Country: "US", State: "NV", Rate: dec("0.0685")},
	}
}

func TestCalculate_StackedJurisdictions(t *testing.T) {
	calc := NewCalculator(caRules(), false)

	res := calc.Calculate(
		[]LineInput{{ItemKey: "a", Amount: dec("100.00")}},
		domain.Location{Country: "US", State: "CA"},
	)

	require.Len(t, res.Lines, 2, "CA stacks state and local tax")
	assert.Equal(t, "State Tax", res.Lines[0].Label)
	assert.True(t, res.Lines[0].Amount.Equal(dec("7.25")))
	assert.Equal(t, "Local Tax", res.Lines[1].Label)
	assert.True(t, res.Lines[1].Amount.Equal(dec("1.00")))
	assert.True(t, res.TotalTax.Equal(dec("8.25")))
	assert.True(t, res.PerItem["a"].Equal(dec("8.25")))
}

func TestCalculate_StateSelectsRule(t *testing.T) {
	calc := NewCalculator(caRules(), false)

	res := calc.Calculate(
		[]LineInput{{ItemKey: "a", Amount: dec("100.00")}},
		domain.Location{Country: "US", State: "NV"},
	)

	require.Len(t, res.Lines, 1)
	assert.True(t, res.TotalTax.Equal(dec("6.85")))
}

func TestCalculate_NoMatchingJurisdiction(t *testing.T) {
	calc := NewCalculator(caRules(), false)

	res := calc.Calculate(
		[]LineInput{{ItemKey: "a", Amount: dec("100.00")}},
		domain.Location{Country: "DE"},
	)

	assert.Empty(t, res.Lines)
	assert.True(t, res.TotalTax.IsZero())
}

func TestCalculate_EmptyCountryRuleIsFallback(t *testing.T) {
	calc := NewCalculator([]Rule{{Label: "Flat", Rate: dec("0.05")}}, false)

	res := calc.Calculate(
		[]LineInput{{ItemKey: "a", Amount: dec("10.00")}},
		domain.Location{},
	)

	require.Len(t, res.Lines, 1)
	assert.True(t, res.TotalTax.Equal(dec("0.50")))
}

func TestCalculate_FallbackDoesNotStackOnCountryRules(t *testing.T) {
	rules := append(caRules(), Rule{Label: "Flat", Rate: dec("0.05")})
	calc := NewCalculator(rules, false)
	lines := []LineInput{{ItemKey: "a", Amount: dec("100.00")}}

	// A known location uses only its country rules.
	ca := calc.Calculate(lines, domain.Location{Country: "US", State: "CA"})
	require.Len(t, ca.Lines, 2)
	assert.True(t, ca.TotalTax.Equal(dec("8.25")), "fallback must not stack, got %s", ca.TotalTax)

	// An unknown location gets the fallback rate alone.
	de := calc.Calculate(lines, domain.Location{Country: "DE"})
	require.Len(t, de.Lines, 1)
	assert.Equal(t, "Flat", de.Lines[0].Label)
	assert.True(t, de.TotalTax.Equal(dec("5.00")))
}

func TestCalculate_RoundsPerLine(t *testing.T) {
	calc := NewCalculator([]Rule{{Label: "State Tax", Country: "US", State: "CA", Rate: dec("0.0725")}}, false)

	// 0.0725 * 0.10 = 0.00725 -> 0.01 per line, not accumulated raw.
	res := calc.Calculate(
		[]LineInput{
			{ItemKey: "a", Amount: dec("0.10")},
			{ItemKey: "b", Amount: dec("0.10")},
		},
		domain.Location{Country: "US", State: "CA"},
	)

	assert.True(t, res.PerItem["a"].Equal(dec("0.01")))
	assert.True(t, res.TotalTax.Equal(dec("0.02")))
}

func TestCalculate_CachedResultIsReused(t *testing.T) {
	calc := NewCalculator(caRules(), false)
	lines := []LineInput{{ItemKey: "a", Amount: dec("100.00")}}
	loc := domain.Location{Country: "US", State: "CA"}

	r1 := calc.Calculate(lines, loc)
	r2 := calc.Calculate(lines, loc)
	assert.Same(t, r1, r2, "identical inputs hit the cache")

	calc.ClearCache()
	r3 := calc.Calculate(lines, loc)
	assert.NotSame(t, r1, r3, "ClearCache forces recomputation")
	assert.True(t, r1.TotalTax.Equal(r3.TotalTax), "recomputation yields the same result")
}

func TestCalculate_DifferentLocationDifferentCacheKey(t *testing.T) {
	calc := NewCalculator(caRules(), false)
	lines := []LineInput{{ItemKey: "a", Amount: dec("100.00")}}

	ca := calc.Calculate(lines, domain.Location{Country: "US", State: "CA"})
	nv := calc.Calculate(lines, domain.Location{Country: "US", State: "NV"})
	assert.False(t, ca.TotalTax.Equal(nv.TotalTax))
}
