package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/pos-cart/internal/domain"
)

func setupStore(t *testing.T) *Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client)
}

func TestStore_GetMissing(t *testing.T) {
	s := setupStore(t)
	_, err := s.Get(context.Background(), "T1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestStore_SaveGetDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := &domain.Cart{
		TerminalID: "T1",
		OrderKey:   "ok-1",
		Items: []domain.CartItem{
			{ItemKey: "k1", ProductID: 7, Quantity: 2, VariationData: map[string]string{"size": "L"}},
		},
		Coupons:  []string{"SAVE10"},
		Revision: 3,
	}
	require.NoError(t, s.Save(ctx, c))

	got, err := s.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, c.OrderKey, got.OrderKey)
	assert.Equal(t, c.Revision, got.Revision)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "L", got.Items[0].VariationData["size"])

	require.NoError(t, s.Delete(ctx, "T1"))
	_, err = s.Get(ctx, "T1")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestStore_TotalsCacheIsRevisionPinned(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	res := &domain.TotalsResult{
		Subtotal: decimal.NewFromInt(100),
		Total:    decimal.NewFromInt(108),
	}
	require.NoError(t, s.SetTotals(ctx, "T1", 3, res))

	got, ok := s.GetTotals(ctx, "T1", 3)
	require.True(t, ok)
	assert.True(t, got.Total.Equal(res.Total))

	// A different revision misses even though an entry exists.
	_, ok = s.GetTotals(ctx, "T1", 4)
	assert.False(t, ok)

	require.NoError(t, s.InvalidateTotals(ctx, "T1"))
	_, ok = s.GetTotals(ctx, "T1", 3)
	assert.False(t, ok)
}

func TestStore_LockExcludesAndReleases(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	unlock, err := s.Lock(ctx, "T1")
	require.NoError(t, err)

	// A second acquire gives up after the wait window.
	start := time.Now()
	_, err = s.Lock(ctx, "T1")
	assert.ErrorIs(t, err, domain.ErrCartBusy)
	assert.GreaterOrEqual(t, time.Since(start), lockWait)

	// An unrelated terminal is never blocked.
	unlock2, err := s.Lock(ctx, "T2")
	require.NoError(t, err)
	unlock2()

	unlock()
	unlock3, err := s.Lock(ctx, "T1")
	require.NoError(t, err)
	unlock3()
}
