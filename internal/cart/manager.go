// Package cart implements the cart manager: the single source of truth for
// one terminal's in-progress sale. Carts live in the shared store and are
// loaded fresh for every operation; mutations are serialized per terminal.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/catalog"
	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
	"github.com/poskit/pos-cart/internal/events"
	"github.com/poskit/pos-cart/internal/orders"
	"github.com/poskit/pos-cart/internal/reservation"
	"github.com/poskit/pos-cart/internal/session"
	"github.com/poskit/pos-cart/internal/tax"
)

// Manager orchestrates cart mutations and totals computation, consulting the
// catalog facade, the tax calculator and the stock reservation ledger.
type Manager struct {
	store      *Store
	sessions   *session.Handler
	ledger     reservation.Ledger
	catalog    catalog.Catalog
	taxes      *tax.Calculator
	orders     orders.Store
	events     events.Publisher
	clk        clock.Clock
	log        *zap.Logger
	reserveTTL time.Duration
}

func NewManager(
	store *Store,
	sessions *session.Handler,
	ledger reservation.Ledger,
	cat catalog.Catalog,
	taxes *tax.Calculator,
	orderStore orders.Store,
	pub events.Publisher,
	clk clock.Clock,
	log *zap.Logger,
	reserveTTL time.Duration,
) *Manager {
	if reserveTTL <= 0 {
		reserveTTL = reservation.DefaultTTL
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Manager{
		store:      store,
		sessions:   sessions,
		ledger:     ledger,
		catalog:    cat,
		taxes:      taxes,
		orders:     orderStore,
		events:     pub,
		clk:        clk,
		log:        log,
		reserveTTL: reserveTTL,
	}
}

// AddInput describes one add-to-cart request.
type AddInput struct {
	ProductID     int64
	Quantity      int
	VariationID   int64
	VariationData map[string]string
	ItemData      map[string][]string
}

// BatchItemResult reports the outcome for one entry of a batch add.
type BatchItemResult struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	ItemKey   string `json:"item_key,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// BatchResult is the partial-failure report of a batch add: failed entries
// are skipped, earlier successes are kept.
type BatchResult struct {
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// Summary is the reduced-payload totals variant for polling.
type Summary struct {
	ItemCount int             `json:"item_count"`
	LineCount int             `json:"line_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
}

// StatusConflict flags a cart line whose availability dropped below its
// quantity since it was added. The caller decides remediation.
type StatusConflict struct {
	ItemKey   string `json:"item_key"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Available int    `json:"available"`
}

// GetCartContents returns the cart's items and, when requested, its totals.
// Requires a valid session.
func (m *Manager) GetCartContents(ctx context.Context, terminalID string, withTotals bool) (*domain.Cart, *domain.TotalsResult, error) {
	sess, err := m.sessions.Get(ctx, terminalID)
	if err != nil {
		return nil, nil, err
	}
	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, nil, err
	}
	if !withTotals {
		return cart, nil, nil
	}
	totals, err := m.totalsFor(ctx, sess, cart, false)
	if err != nil {
		return nil, nil, err
	}
	return cart, totals, nil
}

// AddToCart validates the product, reserves stock and merges the new line
// into the cart. A failed validation or reservation leaves the cart
// untouched. The session is created implicitly on first cart access.
func (m *Manager) AddToCart(ctx context.Context, terminalID string, in AddInput) (*domain.Cart, error) {
	if _, err := m.sessions.GetOrCreate(ctx, terminalID); err != nil {
		return nil, err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if _, err := m.addItem(ctx, cart, in); err != nil {
		return nil, err
	}
	if err := m.saveMutated(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// addItem applies one add to an already-loaded cart, reserving stock first
// so a conflict never mutates the item list. The caller holds the lock and
// saves afterwards.
func (m *Manager) addItem(ctx context.Context, cart *domain.Cart, in AddInput) (string, error) {
	if in.Quantity <= 0 {
		return "", domain.ErrInvalidQuantity
	}
	product, err := m.catalog.GetProduct(ctx, in.ProductID)
	if err != nil {
		return "", err
	}
	if !product.Purchasable {
		return "", domain.ErrProductNotPurchasable
	}

	key := domain.ItemKey(in.ProductID, in.VariationID, in.VariationData, in.ItemData)

	if product.StockManaged {
		// Reserve the cart's full prospective quantity for this product;
		// a repeat reserve under the same order key replaces, not stacks.
		want := cart.ProductQuantity(in.ProductID) + in.Quantity
		if err := m.ledger.Reserve(ctx, in.ProductID, want, cart.OrderKey, m.reserveTTL); err != nil {
			return "", err
		}
	}

	if existing := cart.FindItem(key); existing != nil {
		existing.Quantity += in.Quantity
		return key, nil
	}
	cart.Items = append(cart.Items, domain.CartItem{
		ItemKey:       key,
		ProductID:     in.ProductID,
		VariationID:   in.VariationID,
		Quantity:      in.Quantity,
		VariationData: in.VariationData,
		ItemData:      in.ItemData,
		AddedAt:       m.clk.Now(),
	})
	return key, nil
}

// BatchAddToCart applies adds sequentially under one lock. Per-item failures
// are reported and skipped; earlier successes are not rolled back.
func (m *Manager) BatchAddToCart(ctx context.Context, terminalID string, inputs []AddInput) (*BatchResult, *domain.Cart, error) {
	if _, err := m.sessions.GetOrCreate(ctx, terminalID); err != nil {
		return nil, nil, err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, nil, err
	}

	result := &BatchResult{Results: make([]BatchItemResult, 0, len(inputs))}
	mutated := false
	for _, in := range inputs {
		r := BatchItemResult{ProductID: in.ProductID, Quantity: in.Quantity}
		key, err := m.addItem(ctx, cart, in)
		if err != nil {
			r.Error = err.Error()
			result.Failed++
		} else {
			r.ItemKey = key
			r.Success = true
			result.Succeeded++
			mutated = true
		}
		result.Results = append(result.Results, r)
	}
	if mutated {
		if err := m.saveMutated(ctx, cart); err != nil {
			return nil, nil, err
		}
	}
	return result, cart, nil
}

// UpdateCartItemQuantity sets a line's quantity; zero removes the line.
func (m *Manager) UpdateCartItemQuantity(ctx context.Context, terminalID, itemKey string, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if _, err := m.sessions.Get(ctx, terminalID); err != nil {
		return nil, err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	item := cart.FindItem(itemKey)
	if item == nil {
		return nil, domain.ErrItemNotFound
	}

	productID := item.ProductID
	prospective := cart.ProductQuantity(productID) - item.Quantity + quantity
	if err := m.syncReservation(ctx, cart, productID, prospective); err != nil {
		return nil, err
	}

	if quantity == 0 {
		cart.RemoveItem(itemKey)
	} else {
		item.Quantity = quantity
	}
	if err := m.saveMutated(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveCartItem deletes a line and shrinks or releases the product's
// reservation accordingly.
func (m *Manager) RemoveCartItem(ctx context.Context, terminalID, itemKey string) (*domain.Cart, error) {
	if _, err := m.sessions.Get(ctx, terminalID); err != nil {
		return nil, err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	item := cart.FindItem(itemKey)
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	remaining := cart.ProductQuantity(item.ProductID) - item.Quantity
	if err := m.syncReservation(ctx, cart, item.ProductID, remaining); err != nil {
		return nil, err
	}
	cart.RemoveItem(itemKey)
	if err := m.saveMutated(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart removes all items, coupons and this cart's stock reservations.
// Always succeeds; clearing an absent cart is a no-op.
func (m *Manager) ClearCart(ctx context.Context, terminalID string) error {
	if _, err := m.sessions.Get(ctx, terminalID); err != nil {
		return err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return err
	}
	defer unlock()

	cart, err := m.store.Get(ctx, terminalID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := m.ledger.Release(ctx, cart.OrderKey); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, terminalID); err != nil {
		return err
	}
	m.publish(events.Event{
		Type:       events.TypeCartCleared,
		TerminalID: terminalID,
		OccurredAt: m.clk.Now(),
	})
	return nil
}

// ReleaseTerminal is the session destroy cascade: it drops the terminal's
// cart and reservations without requiring a live session.
func (m *Manager) ReleaseTerminal(ctx context.Context, terminalID string) error {
	cart, err := m.store.Get(ctx, terminalID)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := m.ledger.Release(ctx, cart.OrderKey); err != nil {
		return err
	}
	return m.store.Delete(ctx, terminalID)
}

// ApplyCoupon validates the code against the current subtotal and applies it.
func (m *Manager) ApplyCoupon(ctx context.Context, terminalID, code string) (*domain.Cart, error) {
	if code == "" {
		return nil, domain.ErrCouponInvalid
	}
	if _, err := m.sessions.Get(ctx, terminalID); err != nil {
		return nil, err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if cart.HasCoupon(code) {
		return nil, domain.ErrCouponAlreadyApplied
	}
	subtotal, err := m.subtotalOf(ctx, cart)
	if err != nil {
		return nil, err
	}
	if _, err := m.catalog.ValidateCoupon(ctx, code, subtotal); err != nil {
		return nil, err
	}
	cart.Coupons = append(cart.Coupons, code)
	if err := m.saveMutated(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveCoupon detaches a previously applied code.
func (m *Manager) RemoveCoupon(ctx context.Context, terminalID, code string) (*domain.Cart, error) {
	if _, err := m.sessions.Get(ctx, terminalID); err != nil {
		return nil, err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if !cart.RemoveCoupon(code) {
		return nil, domain.ErrCouponNotApplied
	}
	if err := m.saveMutated(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// SetCustomer attaches a customer to the terminal's session.
func (m *Manager) SetCustomer(ctx context.Context, terminalID string, customerID int64) (*domain.CartSession, error) {
	return m.sessions.SetCustomerID(ctx, terminalID, customerID)
}

// SetCustomerLocation stores the tax jurisdiction on the session and
// invalidates cached totals.
func (m *Manager) SetCustomerLocation(ctx context.Context, terminalID string, loc domain.Location) (*domain.CartSession, error) {
	sess, err := m.sessions.SetLocation(ctx, terminalID, loc)
	if err != nil {
		return nil, err
	}
	if err := m.store.InvalidateTotals(ctx, terminalID); err != nil {
		m.log.Warn("totals invalidate failed", zap.String("terminal_id", terminalID), zap.Error(err))
	}
	return sess, nil
}

// CalculateTotals computes the cart's totals from current catalog prices.
// Idempotent; force bypasses the cached result.
func (m *Manager) CalculateTotals(ctx context.Context, terminalID string, force bool) (*domain.TotalsResult, error) {
	sess, err := m.sessions.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	return m.totalsFor(ctx, sess, cart, force)
}

// GetCartSummary returns item count and total, reusing a recent cached
// totals result when the cart has not changed since.
func (m *Manager) GetCartSummary(ctx context.Context, terminalID string) (*Summary, error) {
	sess, err := m.sessions.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	totals, err := m.totalsFor(ctx, sess, cart, false)
	if err != nil {
		return nil, err
	}
	return &Summary{
		ItemCount: totals.ItemCount,
		LineCount: len(cart.Items),
		Subtotal:  totals.Subtotal,
		Total:     totals.Total,
	}, nil
}

// CheckCartStatus reports lines whose availability has dropped below their
// cart quantity since they were added. Read-only.
func (m *Manager) CheckCartStatus(ctx context.Context, terminalID string) ([]StatusConflict, error) {
	if _, err := m.sessions.Get(ctx, terminalID); err != nil {
		return nil, err
	}
	cart, err := m.loadOrNewCart(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	conflicts := []StatusConflict{}
	for _, pid := range cart.ProductIDs() {
		product, err := m.catalog.GetProduct(ctx, pid)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				// The product vanished from the catalog; every line is stale.
				for _, item := range cart.Items {
					if item.ProductID == pid {
						conflicts = append(conflicts, StatusConflict{
							ItemKey: item.ItemKey, ProductID: pid,
							Quantity: item.Quantity, Available: 0,
						})
					}
				}
				continue
			}
			return nil, err
		}
		if !product.StockManaged {
			continue
		}
		available, err := m.ledger.AvailableQuantity(ctx, pid, cart.OrderKey)
		if err != nil {
			return nil, err
		}
		if cart.ProductQuantity(pid) <= available {
			continue
		}
		for _, item := range cart.Items {
			if item.ProductID == pid {
				conflicts = append(conflicts, StatusConflict{
					ItemKey: item.ItemKey, ProductID: pid,
					Quantity: item.Quantity, Available: available,
				})
			}
		}
	}
	return conflicts, nil
}

// CompleteOrder snapshots the cart into the order store, consumes the
// cart's reservations against on-hand stock and clears the cart. Payment
// capture is external; this is the bookkeeping a payment step reads.
func (m *Manager) CompleteOrder(ctx context.Context, terminalID string) (*orders.Order, error) {
	sess, err := m.sessions.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	unlock, err := m.store.Lock(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := m.store.Get(ctx, terminalID)
	if errors.Is(err, ErrCartNotFound) {
		return nil, domain.ErrCartEmpty
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	totals, err := m.computeTotals(ctx, sess, cart)
	if err != nil {
		return nil, err
	}

	order := &orders.Order{
		ID:            uuid.New().String(),
		TerminalID:    terminalID,
		CustomerID:    sess.CustomerID,
		Coupons:       append([]string(nil), cart.Coupons...),
		Subtotal:      totals.Subtotal,
		DiscountTotal: totals.DiscountTotal,
		TotalTax:      totals.TotalTax,
		Total:         totals.Total,
		CreatedAt:     m.clk.Now(),
	}
	for i, item := range cart.Items {
		it := totals.Items[i]
		order.Lines = append(order.Lines, orders.Line{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	if err := m.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("order create failed: %w", err)
	}
	if err := m.ledger.ConsumeForOrder(ctx, cart.OrderKey); err != nil {
		return nil, err
	}
	if err := m.store.Delete(ctx, terminalID); err != nil {
		return nil, err
	}
	m.publish(events.Event{
		Type:       events.TypeOrderCompleted,
		TerminalID: terminalID,
		Payload:    map[string]string{"order_id": order.ID, "total": order.Total.StringFixed(2)},
		OccurredAt: m.clk.Now(),
	})
	return order, nil
}

// ClearTaxCache drops the tax calculator's fingerprint cache and the
// per-terminal totals cache for the given terminal.
func (m *Manager) ClearTaxCache(ctx context.Context, terminalID string) {
	m.taxes.ClearCache()
	if err := m.store.InvalidateTotals(ctx, terminalID); err != nil {
		m.log.Warn("totals invalidate failed", zap.String("terminal_id", terminalID), zap.Error(err))
	}
}

func (m *Manager) loadOrNewCart(ctx context.Context, terminalID string) (*domain.Cart, error) {
	cart, err := m.store.Get(ctx, terminalID)
	if errors.Is(err, ErrCartNotFound) {
		now := m.clk.Now()
		return &domain.Cart{
			TerminalID: terminalID,
			OrderKey:   uuid.New().String(),
			Items:      []domain.CartItem{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil
	}
	return cart, err
}

func (m *Manager) saveMutated(ctx context.Context, cart *domain.Cart) error {
	cart.Revision++
	cart.UpdatedAt = m.clk.Now()
	if err := m.store.Save(ctx, cart); err != nil {
		return err
	}
	// Totals must be recomputed on the next read, not auto-cascaded.
	if err := m.store.InvalidateTotals(ctx, cart.TerminalID); err != nil {
		m.log.Warn("totals invalidate failed", zap.String("terminal_id", cart.TerminalID), zap.Error(err))
	}
	return nil
}

// syncReservation brings the product's reservation in line with the cart's
// prospective quantity, before the cart itself is mutated.
func (m *Manager) syncReservation(ctx context.Context, cart *domain.Cart, productID int64, quantity int) error {
	product, err := m.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			// Product removed from catalog after it entered the cart; there
			// is nothing left to hold.
			return m.ledger.Release(ctx, cart.OrderKey, productID)
		}
		return err
	}
	if !product.StockManaged {
		return nil
	}
	if quantity <= 0 {
		return m.ledger.Release(ctx, cart.OrderKey, productID)
	}
	return m.ledger.Reserve(ctx, productID, quantity, cart.OrderKey, m.reserveTTL)
}

func (m *Manager) subtotalOf(ctx context.Context, cart *domain.Cart) (decimal.Decimal, error) {
	subtotal := decimal.Zero
	for _, item := range cart.Items {
		price, err := m.catalog.GetPrice(ctx, item.ProductID, item.VariationID)
		if err != nil {
			return decimal.Zero, err
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2))
	}
	return subtotal, nil
}

// totalsFor serves totals from the revision-pinned cache unless force is
// set, computing and caching on miss.
func (m *Manager) totalsFor(ctx context.Context, sess *domain.CartSession, cart *domain.Cart, force bool) (*domain.TotalsResult, error) {
	if !force {
		if cached, ok := m.store.GetTotals(ctx, cart.TerminalID, cart.Revision); ok {
			return cached, nil
		}
	}
	totals, err := m.computeTotals(ctx, sess, cart)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetTotals(ctx, cart.TerminalID, cart.Revision, totals); err != nil {
		m.log.Warn("totals cache write failed", zap.String("terminal_id", cart.TerminalID), zap.Error(err))
	}
	return totals, nil
}

// computeTotals is the totals algorithm: fresh catalog prices per line,
// percentage coupons before fixed-amount ones (both against the original
// subtotal, clamped so the discount never exceeds it), the discounted base
// distributed proportionally across lines with the rounding residue on the
// last line, then taxes on the discounted line amounts.
func (m *Manager) computeTotals(ctx context.Context, sess *domain.CartSession, cart *domain.Cart) (*domain.TotalsResult, error) {
	res := &domain.TotalsResult{
		Subtotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		TotalTax:      decimal.Zero,
		Total:         decimal.Zero,
		TaxLines:      []domain.TaxLine{},
		Items:         make([]domain.ItemTotals, 0, len(cart.Items)),
		ItemCount:     cart.ItemCount(),
	}

	for _, item := range cart.Items {
		price, err := m.catalog.GetPrice(ctx, item.ProductID, item.VariationID)
		if err != nil {
			return nil, err
		}
		lineSubtotal := price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		res.Items = append(res.Items, domain.ItemTotals{
			ItemKey:      item.ItemKey,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			UnitPrice:    price,
			LineSubtotal: lineSubtotal,
		})
		res.Subtotal = res.Subtotal.Add(lineSubtotal)
	}

	res.DiscountTotal = m.discountFor(ctx, cart, res.Subtotal)
	base := res.Subtotal.Sub(res.DiscountTotal)

	// Distribute the discounted base across lines; the last line absorbs
	// the rounding residue so the line totals always sum to the base.
	if res.Subtotal.IsPositive() {
		distributed := decimal.Zero
		for i := range res.Items {
			if i == len(res.Items)-1 {
				res.Items[i].LineTotal = base.Sub(distributed)
				break
			}
			lt := res.Items[i].LineSubtotal.Mul(base).Div(res.Subtotal).Round(2)
			res.Items[i].LineTotal = lt
			distributed = distributed.Add(lt)
		}
	}

	taxLines := make([]tax.LineInput, len(res.Items))
	for i, it := range res.Items {
		taxLines[i] = tax.LineInput{ItemKey: it.ItemKey, Amount: it.LineTotal}
	}
	taxed := m.taxes.Calculate(taxLines, sess.Location)
	res.TaxLines = taxed.Lines
	res.TotalTax = taxed.TotalTax
	for i := range res.Items {
		res.Items[i].LineTax = taxed.PerItem[res.Items[i].ItemKey]
		if m.taxes.PricesIncludeTax() {
			// Display mode only: the stored totals stay tax-exclusive.
			res.Items[i].LineTotal = res.Items[i].LineTotal.Add(res.Items[i].LineTax)
		}
	}

	res.Total = res.Subtotal.Sub(res.DiscountTotal).Add(res.TotalTax)
	return res, nil
}

// discountFor sums coupon discounts in the documented order. Coupons that
// fail re-validation at computation time contribute nothing; they stay on
// the cart for the operator to remove.
func (m *Manager) discountFor(ctx context.Context, cart *domain.Cart, subtotal decimal.Decimal) decimal.Decimal {
	if len(cart.Coupons) == 0 || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var percents, fixed []*domain.Coupon
	for _, code := range cart.Coupons {
		coupon, err := m.catalog.ValidateCoupon(ctx, code, subtotal)
		if err != nil {
			m.log.Warn("applied coupon no longer valid",
				zap.String("terminal_id", cart.TerminalID),
				zap.String("coupon", code),
				zap.Error(err))
			continue
		}
		if coupon.Type == domain.CouponPercent {
			percents = append(percents, coupon)
		} else {
			fixed = append(fixed, coupon)
		}
	}

	discount := decimal.Zero
	for _, c := range percents {
		discount = discount.Add(subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2))
	}
	for _, c := range fixed {
		discount = discount.Add(c.Value.Round(2))
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount
}

func (m *Manager) publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.events.Publish(ctx, e); err != nil {
		m.log.Warn("event publish failed",
			zap.String("type", e.Type),
			zap.String("terminal_id", e.TerminalID),
			zap.Error(err))
	}
}
