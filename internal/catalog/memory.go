package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
)

// MemoryCatalog is an in-process Catalog used when the service runs without
// the platform's catalog backend (demo deployments and tests). Variation
// prices are keyed by (product, variation).
type MemoryCatalog struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	variationPrices map[int64]map[int64]decimal.Decimal
	coupons         map[string]domain.Coupon
	clk             clock.Clock
}

func NewMemoryCatalog(clk clock.Clock) *MemoryCatalog {
	return &MemoryCatalog{
		products:        make(map[int64]domain.Product),
		variationPrices: make(map[int64]map[int64]decimal.Decimal),
		coupons:         make(map[string]domain.Coupon),
		clk:             clk,
	}
}

// PutProduct inserts or replaces a product.
func (m *MemoryCatalog) PutProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// PutVariationPrice sets the price override for a variation of a product.
func (m *MemoryCatalog) PutVariationPrice(productID, variationID int64, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.variationPrices[productID] == nil {
		m.variationPrices[productID] = make(map[int64]decimal.Decimal)
	}
	m.variationPrices[productID][variationID] = price
}

// PutCoupon inserts or replaces a coupon.
func (m *MemoryCatalog) PutCoupon(c domain.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coupons[strings.ToUpper(c.Code)] = c
}

func (m *MemoryCatalog) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := p
	return &cp, nil
}

func (m *MemoryCatalog) GetPrice(_ context.Context, productID, variationID int64) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return decimal.Zero, domain.ErrProductNotFound
	}
	if variationID != 0 {
		if vp, ok := m.variationPrices[productID][variationID]; ok {
			return vp, nil
		}
	}
	return p.Price, nil
}

func (m *MemoryCatalog) ListProducts(_ context.Context, category string) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		if category != "" && !hasCategory(p, category) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasCategory(p domain.Product, category string) bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func (m *MemoryCatalog) ValidateCoupon(_ context.Context, code string, subtotal decimal.Decimal) (*domain.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coupons[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("coupon %q does not exist: %w", code, domain.ErrCouponInvalid)
	}
	now := m.clk.Now()
	if !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt) {
		return nil, fmt.Errorf("coupon %q expired at %s: %w", code, c.ExpiresAt.Format(time.RFC3339), domain.ErrCouponInvalid)
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return nil, fmt.Errorf("coupon %q usage limit reached: %w", code, domain.ErrCouponInvalid)
	}
	if c.MinSpend.IsPositive() && subtotal.LessThan(c.MinSpend) {
		return nil, fmt.Errorf("coupon %q requires a minimum spend of %s: %w", code, c.MinSpend.StringFixed(2), domain.ErrCouponInvalid)
	}
	cp := c
	return &cp, nil
}
