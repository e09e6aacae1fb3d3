// Package reservation implements the stock reservation ledger: short-TTL
// holds on sellable inventory keyed by (product_id, order_key), guarding
// available-to-sell quantity across all terminals.
package reservation

import (
	"context"
	"time"

	"github.com/poskit/pos-cart/internal/domain"
)

// DefaultTTL is how long a reservation is valid before auto-expiring.
const DefaultTTL = 10 * time.Minute

// Ledger defines reserve/release/expire semantics over shared inventory.
type Ledger interface {
	// SetStock sets the on-hand quantity for a product. Used by the
	// catalog-sync path and for initialization.
	SetStock(ctx context.Context, productID int64, quantity int) error

	// OnHand returns the raw on-hand stock, ignoring reservations.
	OnHand(ctx context.Context, productID int64) (int, error)

	// Reserve creates or replaces the (productID, orderKey) reservation in a
	// single atomically-checked-and-applied step. A repeated call with the
	// same key replaces the quantity and pushes the expiry forward. Fails
	// with *domain.StockConflictError when quantity exceeds on-hand minus
	// the sum of other active reservations.
	Reserve(ctx context.Context, productID int64, quantity int, orderKey string, ttl time.Duration) error

	// Release removes the order's reservations for the given products, or
	// all of them when none are listed. No-op if nothing is held; callers
	// may release defensively.
	Release(ctx context.Context, orderKey string, productIDs ...int64) error

	// Reserved returns the active quantity this order holds on a product
	// (0 when absent or expired).
	Reserved(ctx context.Context, productID int64, orderKey string) (int, error)

	// AvailableQuantity is on-hand minus all non-expired reservations,
	// excluding excludeOrderKey's own hold when non-empty.
	AvailableQuantity(ctx context.Context, productID int64, excludeOrderKey string) (int, error)

	// ConsumeForOrder finalizes an order: each of the order's active
	// reservations is deducted from on-hand stock and removed.
	ConsumeForOrder(ctx context.Context, orderKey string) error

	// Sweep physically purges expired reservations. Housekeeping only;
	// every read path already treats expired holds as absent.
	Sweep(ctx context.Context) (int, error)
}

// ErrUnknownProduct is returned when no stock record exists for a product.
var ErrUnknownProduct = domain.ErrProductNotFound
