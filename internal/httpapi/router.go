// Package httpapi is the thin HTTP layer over the cart core: request
// validation, terminal resolution and error mapping. All domain behavior
// lives below it.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/cart"
	"github.com/poskit/pos-cart/internal/catalog"
	"github.com/poskit/pos-cart/internal/reservation"
	"github.com/poskit/pos-cart/internal/session"
)

// RouterConfig carries the wired components and HTTP-level tunables.
type RouterConfig struct {
	Manager        *cart.Manager
	Sessions       *session.Handler
	Ledger         reservation.Ledger
	Catalog        catalog.Catalog
	Logger         *zap.Logger
	RequestTimeout time.Duration
	ThrottleLimit  int
}

// NewRouter builds the chi router with the full REST surface.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ThrottleLimit <= 0 {
		cfg.ThrottleLimit = 200
	}

	cartH := NewCartHandler(cfg.Manager, cfg.Logger)
	sessionH := NewSessionHandler(cfg.Sessions, cfg.Logger)
	stockH := NewStockHandler(cfg.Ledger, cfg.Logger)
	catalogH := NewCatalogHandler(cfg.Catalog, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Throttle(cfg.ThrottleLimit))
	r.Use(middleware.Compress(5))
	r.Use(TerminalBindingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalogH.List)
			r.Get("/{product_id}", catalogH.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartH.GetCart)
			r.Post("/add", cartH.AddItem)
			r.Post("/batch-add", cartH.BatchAdd)
			r.Put("/update/{item_key}", cartH.UpdateItem)
			r.Delete("/remove/{item_key}", cartH.RemoveItem)
			r.Delete("/clear", cartH.ClearCart)
			r.Get("/totals", cartH.GetTotals)
			r.Post("/calculate", cartH.Recalculate)
			r.Get("/taxes", cartH.GetTaxes)
			r.Post("/apply-discount", cartH.ApplyDiscount)
			r.Delete("/remove-discount", cartH.RemoveDiscount)
			r.Put("/customer", cartH.SetCustomer)
			r.Put("/location", cartH.SetLocation)
			r.Get("/summary", cartH.Summary)
			r.Get("/status", cartH.Status)

			r.Route("/session", func(r chi.Router) {
				r.Post("/create", sessionH.Create)
				r.Get("/validate", sessionH.Validate)
				r.Put("/extend", sessionH.Extend)
				r.Delete("/destroy", sessionH.Destroy)
			})
		})

		r.Post("/order/complete", cartH.CompleteOrder)

		r.Route("/stock", func(r chi.Router) {
			r.Post("/reserve", stockH.Reserve)
			r.Post("/release", stockH.Release)
		})
	})

	return r
}
