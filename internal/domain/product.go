package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the read-only view the cart core needs from the catalog.
// Catalog storage and admin are external to this service.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Purchasable  bool            `json:"purchasable"`
	StockManaged bool            `json:"stock_managed"`
	StockOnHand  int             `json:"stock_on_hand"`
	Categories   []string        `json:"categories,omitempty"`
}

// CouponType distinguishes how a coupon value is interpreted.
type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

// Coupon as validated by the coupon service.
type Coupon struct {
	Code       string          `json:"code"`
	Type       CouponType      `json:"type"`
	Value      decimal.Decimal `json:"value"` // percent (0-100) or fixed amount
	MinSpend   decimal.Decimal `json:"min_spend"`
	UsageLimit int             `json:"usage_limit"` // 0 = unlimited
	UsageCount int             `json:"usage_count"`
	ExpiresAt  time.Time       `json:"expires_at"` // zero = never
}

// Location identifies the tax jurisdiction of the customer at the terminal.
// All fields optional; empty strings mean "unknown".
type Location struct {
	Country  string `json:"country"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	City     string `json:"city"`
}

// IsZero reports whether no component of the location is set.
func (l Location) IsZero() bool {
	return l.Country == "" && l.State == "" && l.Postcode == "" && l.City == ""
}
