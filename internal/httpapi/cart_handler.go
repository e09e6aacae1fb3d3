package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/cart"
	"github.com/poskit/pos-cart/internal/domain"
)

// CartHandler exposes the cart manager over HTTP.
type CartHandler struct {
	manager *cart.Manager
	log     *zap.Logger
}

func NewCartHandler(manager *cart.Manager, log *zap.Logger) *CartHandler {
	return &CartHandler{manager: manager, log: log}
}

type addItemDTO struct {
	TerminalID    string              `json:"terminal_id,omitempty"`
	ProductID     int64               `json:"product_id"`
	Quantity      int                 `json:"quantity"`
	VariationID   int64               `json:"variation_id,omitempty"`
	VariationData map[string]string   `json:"variation_data,omitempty"`
	ItemData      map[string][]string `json:"item_data,omitempty"`
}

type batchAddDTO struct {
	TerminalID string       `json:"terminal_id,omitempty"`
	Items      []addItemDTO `json:"items"`
}

type updateQuantityDTO struct {
	TerminalID string `json:"terminal_id,omitempty"`
	Quantity   int    `json:"quantity"`
}

type couponDTO struct {
	TerminalID string `json:"terminal_id,omitempty"`
	Code       string `json:"code"`
}

type customerDTO struct {
	TerminalID string `json:"terminal_id,omitempty"`
	CustomerID int64  `json:"customer_id"`
}

type locationDTO struct {
	TerminalID string `json:"terminal_id,omitempty"`
	Country    string `json:"country"`
	State      string `json:"state"`
	Postcode   string `json:"postcode"`
	City       string `json:"city"`
}

type cartResponse struct {
	Cart   *domain.Cart         `json:"cart"`
	Totals *domain.TotalsResult `json:"totals,omitempty"`
}

func requireTerminal(w http.ResponseWriter, r *http.Request, explicit string) (string, bool) {
	tid := resolveTerminal(r, explicit)
	if tid == "" {
		respondError(w, http.StatusUnauthorized, "terminal_unresolved",
			"no terminal_id provided and no terminal binding on the request", nil)
		return "", false
	}
	return tid, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return false
	}
	return true
}

// GetCart handles GET /cart. ?totals=true includes the computed totals.
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	withTotals := r.URL.Query().Get("totals") == "true" || r.URL.Query().Get("totals") == "1"
	c, totals, err := h.manager.GetCartContents(r.Context(), tid, withTotals)
	if err != nil {
		respondDomainError(w, h.log, "get_cart_contents", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c, Totals: totals})
}

// AddItem handles POST /cart/add.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid, ok := requireTerminal(w, r, req.TerminalID)
	if !ok {
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive", nil)
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be positive", nil)
		return
	}
	c, err := h.manager.AddToCart(r.Context(), tid, cart.AddInput{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		VariationID:   req.VariationID,
		VariationData: req.VariationData,
		ItemData:      req.ItemData,
	})
	if err != nil {
		respondDomainError(w, h.log, "add_to_cart", tid, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse{Cart: c})
}

// BatchAdd handles POST /cart/batch-add with partial-failure semantics.
func (h *CartHandler) BatchAdd(w http.ResponseWriter, r *http.Request) {
	var req batchAddDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid, ok := requireTerminal(w, r, req.TerminalID)
	if !ok {
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "empty_batch", "items must not be empty", nil)
		return
	}
	inputs := make([]cart.AddInput, len(req.Items))
	for i, it := range req.Items {
		inputs[i] = cart.AddInput{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			VariationID:   it.VariationID,
			VariationData: it.VariationData,
			ItemData:      it.ItemData,
		}
	}
	result, c, err := h.manager.BatchAddToCart(r.Context(), tid, inputs)
	if err != nil {
		respondDomainError(w, h.log, "batch_add_to_cart", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"batch": result, "cart": c})
}

// UpdateItem handles PUT /cart/update/{item_key}. Quantity 0 removes.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemKey := chi.URLParam(r, "item_key")
	var req updateQuantityDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid, ok := requireTerminal(w, r, req.TerminalID)
	if !ok {
		return
	}
	c, err := h.manager.UpdateCartItemQuantity(r.Context(), tid, itemKey, req.Quantity)
	if err != nil {
		respondDomainError(w, h.log, "update_cart_item_quantity", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// RemoveItem handles DELETE /cart/remove/{item_key}.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemKey := chi.URLParam(r, "item_key")
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	c, err := h.manager.RemoveCartItem(r.Context(), tid, itemKey)
	if err != nil {
		respondDomainError(w, h.log, "remove_cart_item", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// ClearCart handles DELETE /cart/clear; requires ?confirm=true so a stray
// client call cannot wipe a sale.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusBadRequest, "confirm_required", "pass confirm=true to clear the cart", nil)
		return
	}
	if err := h.manager.ClearCart(r.Context(), tid); err != nil {
		respondDomainError(w, h.log, "clear_cart", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// GetTotals handles GET /cart/totals.
func (h *CartHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	totals, err := h.manager.CalculateTotals(r.Context(), tid, false)
	if err != nil {
		respondDomainError(w, h.log, "calculate_totals", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// Recalculate handles POST /cart/calculate: drops caches and recomputes.
func (h *CartHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	h.manager.ClearTaxCache(r.Context(), tid)
	totals, err := h.manager.CalculateTotals(r.Context(), tid, true)
	if err != nil {
		respondDomainError(w, h.log, "calculate_totals", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// GetTaxes handles GET /cart/taxes: the tax breakdown only.
func (h *CartHandler) GetTaxes(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	totals, err := h.manager.CalculateTotals(r.Context(), tid, false)
	if err != nil {
		respondDomainError(w, h.log, "calculate_totals", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tax_lines": totals.TaxLines,
		"total_tax": totals.TotalTax,
	})
}

// ApplyDiscount handles POST /cart/apply-discount.
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req couponDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid, ok := requireTerminal(w, r, req.TerminalID)
	if !ok {
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "coupon_code_required", "code must not be empty", nil)
		return
	}
	c, err := h.manager.ApplyCoupon(r.Context(), tid, req.Code)
	if err != nil {
		respondDomainError(w, h.log, "apply_coupon", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// RemoveDiscount handles DELETE /cart/remove-discount?code=….
func (h *CartHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "coupon_code_required", "code query parameter required", nil)
		return
	}
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	c, err := h.manager.RemoveCoupon(r.Context(), tid, code)
	if err != nil {
		respondDomainError(w, h.log, "remove_coupon", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c})
}

// SetCustomer handles PUT /cart/customer.
func (h *CartHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid, ok := requireTerminal(w, r, req.TerminalID)
	if !ok {
		return
	}
	sess, err := h.manager.SetCustomer(r.Context(), tid, req.CustomerID)
	if err != nil {
		respondDomainError(w, h.log, "set_customer_id", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// SetLocation handles PUT /cart/location.
func (h *CartHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	var req locationDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid, ok := requireTerminal(w, r, req.TerminalID)
	if !ok {
		return
	}
	sess, err := h.manager.SetCustomerLocation(r.Context(), tid, domain.Location{
		Country:  req.Country,
		State:    req.State,
		Postcode: req.Postcode,
		City:     req.City,
	})
	if err != nil {
		respondDomainError(w, h.log, "set_customer_location", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// Summary handles GET /cart/summary: cheap polling payload.
func (h *CartHandler) Summary(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	s, err := h.manager.GetCartSummary(r.Context(), tid)
	if err != nil {
		respondDomainError(w, h.log, "get_cart_summary", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// Status handles GET /cart/status: availability conflict check.
func (h *CartHandler) Status(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	conflicts, err := h.manager.CheckCartStatus(r.Context(), tid)
	if err != nil {
		respondDomainError(w, h.log, "check_cart_status", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conflicts": conflicts,
		"ok":        len(conflicts) == 0,
	})
}

// CompleteOrder handles POST /order/complete.
func (h *CartHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	order, err := h.manager.CompleteOrder(r.Context(), tid)
	if err != nil {
		respondDomainError(w, h.log, "complete_order", tid, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}
