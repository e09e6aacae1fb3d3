package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the cart, session and reservation components.
var (
	ErrProductNotFound       = errors.New("product not found")
	ErrProductNotPurchasable = errors.New("product is not purchasable")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrItemNotFound          = errors.New("cart item not found")
	ErrCartEmpty             = errors.New("cart is empty")
	ErrCartBusy              = errors.New("cart is locked by another request")
	ErrSessionInvalid        = errors.New("session invalid")
	ErrSessionExpired        = errors.New("session expired")
	ErrTerminalIDRequired    = errors.New("terminal id required")
	ErrCouponInvalid         = errors.New("coupon invalid")
	ErrCouponAlreadyApplied  = errors.New("coupon already applied")
	ErrCouponNotApplied      = errors.New("coupon not applied")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrCatalogUnavailable    = errors.New("catalog unavailable")
	ErrStoreUnavailable      = errors.New("store unavailable")
)

// StockConflictError wraps ErrInsufficientStock with the state the caller
// needs to retry intelligently.
type StockConflictError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockConflictError) Unwrap() error {
	return ErrInsufficientStock
}
