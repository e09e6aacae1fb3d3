package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/pos-cart/internal/domain"
)

// flakyCatalog fails every call with the configured error until healed.
type flakyCatalog struct {
	err     error
	product domain.Product
}

func (f *flakyCatalog) GetProduct(context.Context, int64) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := f.product
	return &cp, nil
}

func (f *flakyCatalog) GetPrice(context.Context, int64, int64) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.product.Price, nil
}

func (f *flakyCatalog) ListProducts(context.Context, string) ([]domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Product{f.product}, nil
}

func (f *flakyCatalog) ValidateCoupon(context.Context, string, decimal.Decimal) (*domain.Coupon, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Coupon{Code: "OK"}, nil
}

func TestBreaker_PassesThroughWhenHealthy(t *testing.T) {
	inner := &flakyCatalog{product: domain.Product{ID: 1, Name: "Widget", Price: decimal.NewFromInt(5)}}
	cb := NewWithBreaker(inner)

	p, err := cb.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Name)
}

func TestBreaker_OpensAfterConsecutiveBackendFailures(t *testing.T) {
	inner := &flakyCatalog{err: errors.New("connection refused")}
	cb := NewWithBreaker(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := cb.GetProduct(ctx, 1)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrCatalogUnavailable, "breaker still closed on attempt %d", i+1)
	}

	// Tripped: calls fail fast without reaching the backend.
	_, err := cb.GetProduct(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	// Recovery does not help until the breaker's timeout elapses.
	inner.err = nil
	_, err = cb.GetProduct(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestBreaker_DomainErrorsDoNotTrip(t *testing.T) {
	inner := &flakyCatalog{err: domain.ErrProductNotFound}
	cb := NewWithBreaker(inner)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := cb.GetProduct(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	}

	inner.err = nil
	_, err := cb.GetProduct(ctx, 1)
	assert.NoError(t, err, "not-found responses never open the circuit")
}
