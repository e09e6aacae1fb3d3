package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/domain"
	"github.com/poskit/pos-cart/internal/orders"
)

// envelope is the uniform response shape: success + data, or an error with
// a machine code and human message.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	e := envelope{Success: false, Error: &apiError{Code: code, Message: message, Details: details}}
	if err := json.NewEncoder(w).Encode(e); err != nil {
		zap.L().Warn("failed to encode error response", zap.Error(err))
	}
}

// respondDomainError maps a domain error to its HTTP class. Unexpected
// errors are logged with operation context and returned as a generic
// internal error; raw internals never reach the client.
func respondDomainError(w http.ResponseWriter, log *zap.Logger, op, terminalID string, err error) {
	var conflict *domain.StockConflictError
	if errors.As(err, &conflict) {
		respondError(w, http.StatusConflict, "insufficient_stock", conflict.Error(), map[string]interface{}{
			"product_id": conflict.ProductID,
			"requested":  conflict.Requested,
			"available":  conflict.Available,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrTerminalIDRequired):
		respondError(w, http.StatusBadRequest, "terminal_id_required", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error(), nil)
	case errors.Is(err, domain.ErrProductNotPurchasable):
		respondError(w, http.StatusBadRequest, "product_not_purchasable", err.Error(), nil)
	case errors.Is(err, domain.ErrCartEmpty):
		respondError(w, http.StatusBadRequest, "cart_empty", err.Error(), nil)
	case errors.Is(err, domain.ErrCouponInvalid):
		respondError(w, http.StatusBadRequest, "coupon_invalid", err.Error(), nil)
	case errors.Is(err, domain.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrCouponNotApplied):
		respondError(w, http.StatusNotFound, "coupon_not_applied", err.Error(), nil)
	case errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error(), nil)
	case errors.Is(err, domain.ErrCouponAlreadyApplied):
		respondError(w, http.StatusConflict, "coupon_already_applied", err.Error(), nil)
	case errors.Is(err, domain.ErrCartBusy):
		respondError(w, http.StatusConflict, "cart_busy", err.Error(), nil)
	case errors.Is(err, domain.ErrSessionInvalid):
		respondError(w, http.StatusUnauthorized, "session_invalid", err.Error(), nil)
	case errors.Is(err, domain.ErrSessionExpired):
		respondError(w, http.StatusGone, "session_expired", err.Error(), nil)
	case errors.Is(err, domain.ErrCatalogUnavailable), errors.Is(err, domain.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "dependency_unavailable", err.Error(), nil)
	default:
		log.Error("unexpected error",
			zap.String("operation", op),
			zap.String("terminal_id", terminalID),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
