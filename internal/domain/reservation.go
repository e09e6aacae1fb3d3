package domain

import "time"

// StockReservation is a short-lived hold on sellable inventory, keyed by
// (product_id, order_key). A second reserve for the same key replaces the
// quantity and pushes the expiry forward rather than stacking a second hold.
type StockReservation struct {
	ProductID int64     `json:"product_id"`
	OrderKey  string    `json:"order_key"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExpiredAt reports whether the reservation must be ignored by quantity
// checks performed at the given instant. Physical cleanup may lag; every
// read path re-checks this.
func (r *StockReservation) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
