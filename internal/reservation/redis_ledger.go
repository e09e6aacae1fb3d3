package reservation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
)

// RedisLedger keeps reservations in Redis so every request handler sees the
// same ledger. Layout:
//
//	stock:{pid}    string, on-hand quantity
//	resv:{pid}     hash, order_key -> "qty:expires_unix_ms"
//	resvidx:{key}  set of product ids held by one order key
//	resv:products  set of product ids that have (or had) reservations
//
// The reserve check-and-apply runs as a Lua script, so two terminals
// contending for the last unit can never both win.
type RedisLedger struct {
	client *redis.Client
	clk    clock.Clock
}

func NewRedisLedger(client *redis.Client, clk clock.Clock) *RedisLedger {
	return &RedisLedger{client: client, clk: clk}
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

func resvKey(productID int64) string {
	return fmt.Sprintf("resv:%d", productID)
}

func orderIndexKey(orderKey string) string {
	return "resvidx:" + orderKey
}

const productsIndexKey = "resv:products"

// reserveScript atomically recomputes availability (lazily deleting expired
// holds as it goes) and applies the new reservation, in one Redis call. The
// order and product indexes are written in the same script, so a committed
// hold is always reachable from its order key.
// Returns {1, remaining} on success, {-1, available} on conflict, {-2, 0}
// when the product has no stock record.
var reserveScript = redis.NewScript(`
local onhand = redis.call('GET', KEYS[1])
if not onhand then
  return {-2, 0}
end
onhand = tonumber(onhand)
local now = tonumber(ARGV[3])
local others = 0
local entries = redis.call('HGETALL', KEYS[2])
for i = 1, #entries, 2 do
  local field = entries[i]
  local qty, exp = string.match(entries[i+1], '^(%d+):(%d+)$')
  if exp == nil or tonumber(exp) <= now then
    redis.call('HDEL', KEYS[2], field)
  elseif field ~= ARGV[1] then
    others = others + tonumber(qty)
  end
end
local available = onhand - others
if tonumber(ARGV[2]) > available then
  return {-1, available}
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2] .. ':' .. ARGV[4])
redis.call('SADD', KEYS[3], ARGV[5])
redis.call('SADD', KEYS[4], ARGV[5])
return {1, available - tonumber(ARGV[2])}
`)

// consumeScript deducts one order's active hold on one product from on-hand
// stock and deletes the hold. Expired holds are dropped without deduction.
var consumeScript = redis.NewScript(`
local entry = redis.call('HGET', KEYS[2], ARGV[1])
if not entry then
  return 0
end
redis.call('HDEL', KEYS[2], ARGV[1])
local qty, exp = string.match(entry, '^(%d+):(%d+)$')
if qty == nil or tonumber(exp) <= tonumber(ARGV[2]) then
  return 0
end
redis.call('DECRBY', KEYS[1], tonumber(qty))
return tonumber(qty)
`)

func (l *RedisLedger) SetStock(ctx context.Context, productID int64, quantity int) error {
	if err := l.client.Set(ctx, stockKey(productID), quantity, 0).Err(); err != nil {
		return fmt.Errorf("set stock failed: %w", err)
	}
	return nil
}

func (l *RedisLedger) OnHand(ctx context.Context, productID int64) (int, error) {
	v, err := l.client.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrUnknownProduct
	}
	if err != nil {
		return 0, fmt.Errorf("get stock failed: %w", err)
	}
	return v, nil
}

func (l *RedisLedger) Reserve(ctx context.Context, productID int64, quantity int, orderKey string, ttl time.Duration) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := l.clk.Now()
	res, err := reserveScript.Run(ctx, l.client,
		[]string{stockKey(productID), resvKey(productID), orderIndexKey(orderKey), productsIndexKey},
		orderKey,
		quantity,
		now.UnixMilli(),
		now.Add(ttl).UnixMilli(),
		productID,
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("reserve script failed: %w", err)
	}
	switch res[0] {
	case 1:
		return nil
	case -1:
		return &domain.StockConflictError{
			ProductID: productID,
			Requested: quantity,
			Available: int(res[1]),
		}
	default:
		return ErrUnknownProduct
	}
}

func (l *RedisLedger) Release(ctx context.Context, orderKey string, productIDs ...int64) error {
	if len(productIDs) == 0 {
		ids, err := l.client.SMembers(ctx, orderIndexKey(orderKey)).Result()
		if err != nil {
			return fmt.Errorf("release index read failed: %w", err)
		}
		for _, s := range ids {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				continue
			}
			productIDs = append(productIDs, id)
		}
	}
	pipe := l.client.Pipeline()
	for _, pid := range productIDs {
		pipe.HDel(ctx, resvKey(pid), orderKey)
		pipe.SRem(ctx, orderIndexKey(orderKey), pid)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release failed: %w", err)
	}
	return nil
}

func (l *RedisLedger) Reserved(ctx context.Context, productID int64, orderKey string) (int, error) {
	entry, err := l.client.HGet(ctx, resvKey(productID), orderKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reserved read failed: %w", err)
	}
	qty, expires, ok := parseEntry(entry)
	if !ok || !l.clk.Now().Before(expires) {
		return 0, nil
	}
	return qty, nil
}

func (l *RedisLedger) AvailableQuantity(ctx context.Context, productID int64, excludeOrderKey string) (int, error) {
	onHand, err := l.OnHand(ctx, productID)
	if err != nil {
		return 0, err
	}
	entries, err := l.client.HGetAll(ctx, resvKey(productID)).Result()
	if err != nil {
		return 0, fmt.Errorf("reservations read failed: %w", err)
	}
	now := l.clk.Now()
	held := 0
	for orderKey, entry := range entries {
		if orderKey == excludeOrderKey {
			continue
		}
		qty, expires, ok := parseEntry(entry)
		if !ok || !now.Before(expires) {
			continue // expired holds are absent, purged or not
		}
		held += qty
	}
	return onHand - held, nil
}

func (l *RedisLedger) ConsumeForOrder(ctx context.Context, orderKey string) error {
	ids, err := l.client.SMembers(ctx, orderIndexKey(orderKey)).Result()
	if err != nil {
		return fmt.Errorf("consume index read failed: %w", err)
	}
	now := l.clk.Now().UnixMilli()
	for _, s := range ids {
		pid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		if err := consumeScript.Run(ctx, l.client,
			[]string{stockKey(pid), resvKey(pid)},
			orderKey, now,
		).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("consume failed for product %d: %w", pid, err)
		}
	}
	if err := l.client.Del(ctx, orderIndexKey(orderKey)).Err(); err != nil {
		return fmt.Errorf("consume index delete failed: %w", err)
	}
	return nil
}

func (l *RedisLedger) Sweep(ctx context.Context) (int, error) {
	ids, err := l.client.SMembers(ctx, productsIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("sweep index read failed: %w", err)
	}
	now := l.clk.Now()
	purged := 0
	for _, s := range ids {
		pid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		entries, err := l.client.HGetAll(ctx, resvKey(pid)).Result()
		if err != nil {
			return purged, fmt.Errorf("sweep read failed: %w", err)
		}
		for orderKey, entry := range entries {
			_, expires, ok := parseEntry(entry)
			if ok && now.Before(expires) {
				continue
			}
			if err := l.client.HDel(ctx, resvKey(pid), orderKey).Err(); err != nil {
				return purged, fmt.Errorf("sweep delete failed: %w", err)
			}
			l.client.SRem(ctx, orderIndexKey(orderKey), pid)
			purged++
		}
		if len(entries) == 0 {
			l.client.SRem(ctx, productsIndexKey, pid)
		}
	}
	return purged, nil
}

// RunSweeper purges expired reservations on a fixed interval until the
// context is cancelled.
func (l *RedisLedger) RunSweeper(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := l.Sweep(ctx); err != nil && onError != nil {
				onError(err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func parseEntry(entry string) (qty int, expires time.Time, ok bool) {
	parts := strings.SplitN(entry, ":", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, false
	}
	q, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, time.Time{}, false
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	return q, time.UnixMilli(ms), true
}
