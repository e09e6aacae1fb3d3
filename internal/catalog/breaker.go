package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/poskit/pos-cart/internal/domain"
)

// WithBreaker wraps a Catalog in a circuit breaker so a struggling catalog
// backend fails fast as domain.ErrCatalogUnavailable instead of piling up
// timed-out requests. Domain errors (not found, invalid coupon) do not count
// as backend failures.
type WithBreaker struct {
	inner Catalog
	cb    *gobreaker.CircuitBreaker[any]
}

func NewWithBreaker(inner Catalog) *WithBreaker {
	settings := gobreaker.Settings{
		Name:    "catalog",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Business outcomes are not backend failures.
			return err == nil ||
				errors.Is(err, domain.ErrProductNotFound) ||
				errors.Is(err, domain.ErrCouponInvalid)
		},
	}
	return &WithBreaker{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (w *WithBreaker) execute(fn func() (any, error)) (any, error) {
	v, err := w.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("catalog circuit open: %w", domain.ErrCatalogUnavailable)
	}
	return v, err
}

func (w *WithBreaker) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	v, err := w.execute(func() (any, error) {
		return w.inner.GetProduct(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (w *WithBreaker) GetPrice(ctx context.Context, productID, variationID int64) (decimal.Decimal, error) {
	v, err := w.execute(func() (any, error) {
		return w.inner.GetPrice(ctx, productID, variationID)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (w *WithBreaker) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	v, err := w.execute(func() (any, error) {
		return w.inner.ListProducts(ctx, category)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (w *WithBreaker) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (*domain.Coupon, error) {
	v, err := w.execute(func() (any, error) {
		return w.inner.ValidateCoupon(ctx, code, subtotal)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Coupon), nil
}
