package domain

import "github.com/shopspring/decimal"

// TaxLine is one jurisdiction's share of the cart tax. A location can stack
// several lines (state + local), so totals carry an ordered list, never a
// single scalar rate.
type TaxLine struct {
	Label  string          `json:"rate_label"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// ItemTotals is the per-line financial breakdown, derived from the current
// catalog price at computation time.
type ItemTotals struct {
	ItemKey      string          `json:"item_key"`
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"` // pre-discount
	LineTotal    decimal.Decimal `json:"line_total"`    // post-discount, pre-tax
	LineTax      decimal.Decimal `json:"line_tax"`
}

// TotalsResult is the computed financial summary of a cart. It is derived
// output, never authoritative state. All amounts are decimal with two
// fractional digits, rounded half-up; tax rounds per line, discounts round
// once per coupon, and Total is the exact sum of the rounded parts.
type TotalsResult struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxLines      []TaxLine       `json:"tax_lines"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	Total         decimal.Decimal `json:"total"`
	Items         []ItemTotals    `json:"items"`
	ItemCount     int             `json:"item_count"`
}
