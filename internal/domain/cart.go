package domain

import "time"

// Cart is the terminal-scoped in-progress sale. It is loaded from and saved
// to the shared store on every operation; no long-lived in-process copy
// exists, so two handlers never share a Cart value.
type Cart struct {
	TerminalID string     `json:"terminal_id"`
	OrderKey   string     `json:"order_key"` // reservation key owned by this cart
	Items      []CartItem `json:"items"`
	Coupons    []string   `json:"coupons,omitempty"`
	Revision   int64      `json:"revision"` // bumped on every mutation
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CartItem is one line of a cart. Prices are never stored on the item; they
// are derived from the catalog at totals-computation time.
type CartItem struct {
	ItemKey       string              `json:"item_key"`
	ProductID     int64               `json:"product_id"`
	VariationID   int64               `json:"variation_id"`
	Quantity      int                 `json:"quantity"`
	VariationData map[string]string   `json:"variation_data,omitempty"`
	ItemData      map[string][]string `json:"item_data,omitempty"`
	AddedAt       time.Time           `json:"added_at"`
}

// FindItem returns a pointer to the item with the given key, or nil.
func (c *Cart) FindItem(itemKey string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ItemKey == itemKey {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveItem deletes the item with the given key, preserving insertion order
// of the rest. Returns false if the key is absent.
func (c *Cart) RemoveItem(itemKey string) bool {
	for i := range c.Items {
		if c.Items[i].ItemKey == itemKey {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// ProductQuantity sums quantities across all lines of one product. A product
// can appear on several lines when variations differ; the stock reservation
// covers the sum.
func (c *Cart) ProductQuantity(productID int64) int {
	total := 0
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			total += c.Items[i].Quantity
		}
	}
	return total
}

// ProductIDs returns the distinct product ids in line order.
func (c *Cart) ProductIDs() []int64 {
	seen := make(map[int64]bool, len(c.Items))
	ids := make([]int64, 0, len(c.Items))
	for i := range c.Items {
		id := c.Items[i].ProductID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// ItemCount is the total number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for i := range c.Items {
		n += c.Items[i].Quantity
	}
	return n
}

// HasCoupon reports whether the code is already applied.
func (c *Cart) HasCoupon(code string) bool {
	for _, cc := range c.Coupons {
		if cc == code {
			return true
		}
	}
	return false
}

// RemoveCoupon deletes the code; returns false if it was not applied.
func (c *Cart) RemoveCoupon(code string) bool {
	for i, cc := range c.Coupons {
		if cc == code {
			c.Coupons = append(c.Coupons[:i], c.Coupons[i+1:]...)
			return true
		}
	}
	return false
}
