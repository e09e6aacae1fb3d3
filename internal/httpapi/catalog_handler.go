package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/catalog"
)

// CatalogHandler exposes read-only product browsing from the catalog facade.
type CatalogHandler struct {
	catalog catalog.Catalog
	log     *zap.Logger
}

func NewCatalogHandler(cat catalog.Catalog, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cat, log: log}
}

// List handles GET /products?category=….
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondDomainError(w, h.log, "list_products", "", err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// Get handles GET /products/{product_id}.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer", nil)
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.log, "get_product", "", err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}
