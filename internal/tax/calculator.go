// Package tax computes jurisdiction-stacked tax lines for a cart. The
// calculation is a pure function of (discounted line amounts, customer
// location, rate table); results are cached by an input fingerprint and the
// cache can be dropped at any time without affecting correctness.
package tax

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/poskit/pos-cart/internal/domain"
)

// Rule maps a jurisdiction to a rate. Country/State match the customer
// location; empty State matches any state in the country. A rule with an
// empty Country is a fallback: it applies only when no country rule matches
// the location. Several rules can match one location (state + local
// stacking) and each produces its own tax line, in rule order.
type Rule struct {
	Label   string
	Country string
	State   string
	Rate    decimal.Decimal // e.g. 0.0725 for 7.25%
}

// LineInput is one cart line after discounts, the base tax is computed on.
type LineInput struct {
	ItemKey string
	Amount  decimal.Decimal
}

// Result is the computed tax breakdown: ordered lines plus per-item tax,
// amounts rounded half-up to 2 dp per line.
type Result struct {
	Lines    []domain.TaxLine
	TotalTax decimal.Decimal
	PerItem  map[string]decimal.Decimal
}

// Calculator is safe for concurrent use. PricesIncludeTax only changes how
// callers present line amounts; the computation here is always on the
// tax-exclusive base.
type Calculator struct {
	rules            []Rule
	pricesIncludeTax bool

	mu    sync.RWMutex
	cache map[string]*Result
	sfg   singleflight.Group // collapses concurrent identical computations
}

func NewCalculator(rules []Rule, pricesIncludeTax bool) *Calculator {
	return &Calculator{
		rules:            rules,
		pricesIncludeTax: pricesIncludeTax,
		cache:            make(map[string]*Result),
	}
}

// PricesIncludeTax reports the configured display mode.
func (c *Calculator) PricesIncludeTax() bool {
	return c.pricesIncludeTax
}

// Calculate returns the tax lines for the given discounted line amounts and
// location. Deterministic and side-effect free apart from the cache.
func (c *Calculator) Calculate(lines []LineInput, loc domain.Location) *Result {
	fp := c.fingerprint(lines, loc)

	c.mu.RLock()
	cached, ok := c.cache[fp]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	v, _, _ := c.sfg.Do(fp, func() (interface{}, error) {
		res := c.compute(lines, loc)
		c.mu.Lock()
		c.cache[fp] = res
		c.mu.Unlock()
		return res, nil
	})
	return v.(*Result)
}

// ClearCache drops all cached results; the next Calculate recomputes.
func (c *Calculator) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*Result)
	c.mu.Unlock()
}

func (c *Calculator) compute(lines []LineInput, loc domain.Location) *Result {
	res := &Result{
		TotalTax: decimal.Zero,
		PerItem:  make(map[string]decimal.Decimal, len(lines)),
	}
	for _, l := range lines {
		res.PerItem[l.ItemKey] = decimal.Zero
	}

	apply := func(rule Rule) {
		lineAmount := decimal.Zero
		for _, l := range lines {
			// Round per line so a line's tax is reproducible on its own.
			itemTax := l.Amount.Mul(rule.Rate).Round(2)
			res.PerItem[l.ItemKey] = res.PerItem[l.ItemKey].Add(itemTax)
			lineAmount = lineAmount.Add(itemTax)
		}
		res.Lines = append(res.Lines, domain.TaxLine{
			Label:  rule.Label,
			Rate:   rule.Rate,
			Amount: lineAmount,
		})
		res.TotalTax = res.TotalTax.Add(lineAmount)
	}

	matched := false
	for _, rule := range c.rules {
		if rule.Country != "" && rule.matches(loc) {
			apply(rule)
			matched = true
		}
	}
	if !matched {
		for _, rule := range c.rules {
			if rule.Country == "" {
				apply(rule)
			}
		}
	}
	return res
}

// matches is only called for country rules; fallback rules (empty Country)
// are handled by the caller.
func (r Rule) matches(loc domain.Location) bool {
	if !strings.EqualFold(r.Country, loc.Country) {
		return false
	}
	return r.State == "" || strings.EqualFold(r.State, loc.State)
}

func (c *Calculator) fingerprint(lines []LineInput, loc domain.Location) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.ItemKey)
		b.WriteByte(':')
		b.WriteString(l.Amount.String())
		b.WriteByte('|')
	}
	b.WriteString(loc.Country)
	b.WriteByte('/')
	b.WriteString(loc.State)
	b.WriteByte('/')
	b.WriteString(loc.Postcode)
	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
