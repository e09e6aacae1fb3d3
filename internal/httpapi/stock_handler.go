package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/reservation"
)

// StockHandler exposes the reservation ledger directly, for callers (order
// completion flows, external checkouts) that manage their own order keys.
type StockHandler struct {
	ledger reservation.Ledger
	log    *zap.Logger
}

func NewStockHandler(ledger reservation.Ledger, log *zap.Logger) *StockHandler {
	return &StockHandler{ledger: ledger, log: log}
}

type reserveDTO struct {
	ProductID      int64  `json:"product_id"`
	Quantity       int    `json:"quantity"`
	OrderKey       string `json:"order_key"`
	TimeoutSeconds int64  `json:"timeout_seconds,omitempty"`
}

type releaseDTO struct {
	OrderKey  string `json:"order_key"`
	ProductID int64  `json:"product_id,omitempty"`
}

// Reserve handles POST /stock/reserve: creates or extends a hold.
func (h *StockHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderKey == "" {
		respondError(w, http.StatusBadRequest, "order_key_required", "order_key must not be empty", nil)
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive", nil)
		return
	}
	ttl := time.Duration(req.TimeoutSeconds) * time.Second
	if err := h.ledger.Reserve(r.Context(), req.ProductID, req.Quantity, req.OrderKey, ttl); err != nil {
		respondDomainError(w, h.log, "stock_reserve", "", err)
		return
	}
	available, err := h.ledger.AvailableQuantity(r.Context(), req.ProductID, "")
	if err != nil {
		respondDomainError(w, h.log, "stock_reserve", "", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reserved":  req.Quantity,
		"available": available,
	})
}

// Release handles POST /stock/release. Releasing a hold that does not exist
// is a no-op, so clients can release defensively.
func (h *StockHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req releaseDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OrderKey == "" {
		respondError(w, http.StatusBadRequest, "order_key_required", "order_key must not be empty", nil)
		return
	}
	var err error
	if req.ProductID > 0 {
		err = h.ledger.Release(r.Context(), req.OrderKey, req.ProductID)
	} else {
		err = h.ledger.Release(r.Context(), req.OrderKey)
	}
	if err != nil {
		respondDomainError(w, h.log, "stock_release", "", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"released": true})
}
