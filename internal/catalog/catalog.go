// Package catalog is the query facade over the e-commerce platform's
// product and coupon data. The cart core only reads from it; storage and
// admin live in the platform.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/poskit/pos-cart/internal/domain"
)

// Catalog is the read-only collaborator the cart core consumes.
type Catalog interface {
	// GetProduct returns the product or domain.ErrProductNotFound.
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// GetPrice returns the current unit price for a product/variation pair.
	// Variation 0 means the base product.
	GetPrice(ctx context.Context, productID, variationID int64) (decimal.Decimal, error)

	// ListProducts returns products in a category; empty category lists all.
	ListProducts(ctx context.Context, category string) ([]domain.Product, error)

	// ValidateCoupon checks existence, expiry, usage limit and minimum
	// spend against the given cart subtotal. Returns domain.ErrCouponInvalid
	// (wrapped with a reason) when the coupon cannot be applied.
	ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Coupon, error)
}
