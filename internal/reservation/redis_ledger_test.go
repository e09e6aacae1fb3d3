package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
)

func setupLedger(t *testing.T) (*RedisLedger, *clock.Fixed) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewRedisLedger(client, clk), clk
}

func TestReserve_DecrementsAvailability(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 10))
	require.NoError(t, ledger.Reserve(ctx, 1, 3, "order-a", time.Minute))

	available, err := ledger.AvailableQuantity(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 7, available)

	onHand, err := ledger.OnHand(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, onHand, "reservations never touch on-hand stock")
}

func TestReserve_SameKeyReplacesInsteadOfStacking(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 10))
	require.NoError(t, ledger.Reserve(ctx, 1, 3, "order-a", time.Minute))
	require.NoError(t, ledger.Reserve(ctx, 1, 5, "order-a", time.Minute))

	held, err := ledger.Reserved(ctx, 1, "order-a")
	require.NoError(t, err)
	assert.Equal(t, 5, held)

	available, err := ledger.AvailableQuantity(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 5, available)
}

func TestReserve_OwnHoldDoesNotBlockItself(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 5))
	require.NoError(t, ledger.Reserve(ctx, 1, 4, "order-a", time.Minute))
	// Re-reserving 5 under the same key must succeed: the old hold of 4 is
	// replaced, not counted against the caller.
	require.NoError(t, ledger.Reserve(ctx, 1, 5, "order-a", time.Minute))
}

func TestReserve_InsufficientStockReportsAvailable(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 5))
	require.NoError(t, ledger.Reserve(ctx, 1, 3, "order-a", time.Minute))

	err := ledger.Reserve(ctx, 1, 4, "order-b", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var conflict *domain.StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 2, conflict.Available)
	assert.Equal(t, 4, conflict.Requested)
}

func TestReserve_UnknownProduct(t *testing.T) {
	ledger, _ := setupLedger(t)
	err := ledger.Reserve(context.Background(), 99, 1, "order-a", time.Minute)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestReserve_ExpiredHoldIsIgnored(t *testing.T) {
	ledger, clk := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 5))
	require.NoError(t, ledger.Reserve(ctx, 1, 5, "order-a", time.Minute))

	// Fully reserved right now.
	err := ledger.Reserve(ctx, 1, 1, "order-b", time.Minute)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// Past the TTL the hold is absent even though it was never released.
	clk.Advance(2 * time.Minute)

	available, err := ledger.AvailableQuantity(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 5, available)
	require.NoError(t, ledger.Reserve(ctx, 1, 5, "order-b", time.Minute))
}

func TestReserve_IndexesCommitWithTheHold(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ledger := NewRedisLedger(client, clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 5))
	require.NoError(t, ledger.Reserve(ctx, 1, 2, "order-a", time.Minute))

	// The order and product indexes are written by the same script call as
	// the hold itself; a blanket Release or ConsumeForOrder depends on that.
	ids, err := client.SMembers(ctx, "resvidx:order-a").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)

	products, err := client.SMembers(ctx, "resv:products").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, products)
}

func TestRelease_FreesHeldStock(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 5))
	require.NoError(t, ledger.SetStock(ctx, 2, 5))
	require.NoError(t, ledger.Reserve(ctx, 1, 2, "order-a", time.Minute))
	require.NoError(t, ledger.Reserve(ctx, 2, 3, "order-a", time.Minute))

	// Releasing with no product list drops every hold of the order key.
	require.NoError(t, ledger.Release(ctx, "order-a"))

	for _, pid := range []int64{1, 2} {
		available, err := ledger.AvailableQuantity(ctx, pid, "")
		require.NoError(t, err)
		assert.Equal(t, 5, available)
	}
}

func TestRelease_NoopWhenNothingHeld(t *testing.T) {
	ledger, _ := setupLedger(t)
	assert.NoError(t, ledger.Release(context.Background(), "ghost-order"))
	assert.NoError(t, ledger.Release(context.Background(), "ghost-order", 1))
}

func TestAvailableQuantity_ExcludesCallersOwnHold(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 10))
	require.NoError(t, ledger.Reserve(ctx, 1, 4, "order-a", time.Minute))
	require.NoError(t, ledger.Reserve(ctx, 1, 2, "order-b", time.Minute))

	available, err := ledger.AvailableQuantity(ctx, 1, "order-a")
	require.NoError(t, err)
	assert.Equal(t, 8, available, "caller's own hold is excluded")

	available, err = ledger.AvailableQuantity(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 4, available)
}

func TestConsumeForOrder_DeductsOnHand(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 10))
	require.NoError(t, ledger.SetStock(ctx, 2, 10))
	require.NoError(t, ledger.Reserve(ctx, 1, 3, "order-a", time.Minute))
	require.NoError(t, ledger.Reserve(ctx, 2, 1, "order-a", time.Minute))

	require.NoError(t, ledger.ConsumeForOrder(ctx, "order-a"))

	onHand, err := ledger.OnHand(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 7, onHand)

	available, err := ledger.AvailableQuantity(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 7, available, "the hold is gone and on-hand dropped")
}

func TestConsumeForOrder_ExpiredHoldIsNotDeducted(t *testing.T) {
	ledger, clk := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 10))
	require.NoError(t, ledger.Reserve(ctx, 1, 3, "order-a", time.Minute))
	clk.Advance(2 * time.Minute)

	require.NoError(t, ledger.ConsumeForOrder(ctx, "order-a"))

	onHand, err := ledger.OnHand(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, onHand)
}

func TestSweep_PurgesOnlyExpired(t *testing.T) {
	ledger, clk := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.SetStock(ctx, 1, 10))
	require.NoError(t, ledger.Reserve(ctx, 1, 2, "short", time.Minute))
	require.NoError(t, ledger.Reserve(ctx, 1, 3, "long", time.Hour))

	clk.Advance(5 * time.Minute)

	purged, err := ledger.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	held, err := ledger.Reserved(ctx, 1, "long")
	require.NoError(t, err)
	assert.Equal(t, 3, held)
}

// The no-oversell property: N concurrent single-unit reserves against a
// stock of M succeed exactly M times, the rest fail with InsufficientStock.
func TestReserve_ConcurrentContentionNeverOversells(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	const stock = 10
	const contenders = 40
	require.NoError(t, ledger.SetStock(ctx, 1, stock))

	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- ledger.Reserve(ctx, 1, 1, fmt.Sprintf("order-%d", n), time.Minute)
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, stock, succeeded, "exactly the on-hand ceiling succeeds")
	assert.Equal(t, contenders-stock, conflicted)

	available, err := ledger.AvailableQuantity(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}
