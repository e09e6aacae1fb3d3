// Package orders is the order store collaborator: the cart core only writes
// the snapshot an order needs at completion time and reads it back for
// bookkeeping. Full order management lives in the platform.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned when an order id is unknown.
var ErrOrderNotFound = errors.New("order not found")

// Line is one snapshotted cart line; prices are fixed at completion time.
type Line struct {
	ProductID   int64           `json:"product_id"`
	VariationID int64           `json:"variation_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Order is the completed-sale snapshot.
type Order struct {
	ID            string          `json:"id"`
	TerminalID    string          `json:"terminal_id"`
	CustomerID    int64           `json:"customer_id"`
	Lines         []Line          `json:"lines"`
	Coupons       []string        `json:"coupons,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Store persists completed orders.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
}
