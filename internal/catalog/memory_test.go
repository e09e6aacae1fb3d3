package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seededCatalog() (*MemoryCatalog, *clock.Fixed) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	cat := NewMemoryCatalog(clk)
	cat.PutProduct(domain.Product{ID: 1, Name: "Shirt", Price: dec("25.00"), Purchasable: true, Categories: []string{"apparel"}})
	cat.PutProduct(domain.Product{ID: 2, Name: "Mug", Price: dec("12.00"), Purchasable: true, Categories: []string{"kitchen"}})
	return cat, clk
}

func TestGetProduct(t *testing.T) {
	cat, _ := seededCatalog()
	ctx := context.Background()

	p, err := cat.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Shirt", p.Name)

	_, err = cat.GetProduct(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestGetPrice_VariationOverride(t *testing.T) {
	cat, _ := seededCatalog()
	ctx := context.Background()

	cat.PutVariationPrice(1, 101, dec("29.00"))

	price, err := cat.GetPrice(ctx, 1, 101)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("29.00")))

	// Unknown variation falls back to the base price.
	price, err = cat.GetPrice(ctx, 1, 999)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("25.00")))

	price, err = cat.GetPrice(ctx, 1, 0)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("25.00")))
}

func TestListProducts_CategoryFilter(t *testing.T) {
	cat, _ := seededCatalog()
	ctx := context.Background()

	all, err := cat.ListProducts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID, "sorted by id")

	apparel, err := cat.ListProducts(ctx, "APPAREL")
	require.NoError(t, err)
	require.Len(t, apparel, 1)
	assert.Equal(t, "Shirt", apparel[0].Name)
}

func TestValidateCoupon(t *testing.T) {
	cat, clk := seededCatalog()
	ctx := context.Background()

	cat.PutCoupon(domain.Coupon{Code: "save10", Type: domain.CouponPercent, Value: dec("10")})

	// Codes are case-insensitive.
	c, err := cat.ValidateCoupon(ctx, "SAVE10", dec("50.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.CouponPercent, c.Type)

	_, err = cat.ValidateCoupon(ctx, "MISSING", dec("50.00"))
	assert.ErrorIs(t, err, domain.ErrCouponInvalid)

	cat.PutCoupon(domain.Coupon{Code: "EXPIRED", Type: domain.CouponFixed, Value: dec("5"), ExpiresAt: clk.Now().Add(-time.Hour)})
	_, err = cat.ValidateCoupon(ctx, "EXPIRED", dec("50.00"))
	assert.ErrorIs(t, err, domain.ErrCouponInvalid)

	cat.PutCoupon(domain.Coupon{Code: "USEDUP", Type: domain.CouponFixed, Value: dec("5"), UsageLimit: 3, UsageCount: 3})
	_, err = cat.ValidateCoupon(ctx, "USEDUP", dec("50.00"))
	assert.ErrorIs(t, err, domain.ErrCouponInvalid)

	cat.PutCoupon(domain.Coupon{Code: "BIG", Type: domain.CouponFixed, Value: dec("20"), MinSpend: dec("100.00")})
	_, err = cat.ValidateCoupon(ctx, "BIG", dec("50.00"))
	assert.ErrorIs(t, err, domain.ErrCouponInvalid)
	_, err = cat.ValidateCoupon(ctx, "BIG", dec("150.00"))
	assert.NoError(t, err)
}
