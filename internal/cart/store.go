package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/poskit/pos-cart/internal/domain"
)

// ErrCartNotFound is returned by Get when the terminal has no cart yet.
var ErrCartNotFound = errors.New("cart not found")

const (
	cartTTL      = 24 * time.Hour
	totalsTTL    = 30 * time.Second
	lockTTL      = 5 * time.Second
	lockWait     = 250 * time.Millisecond
	lockRetryGap = 25 * time.Millisecond
)

// Store persists carts and the advisory totals cache in Redis, and provides
// the per-terminal mutation lock. Carts are keyed by terminal id; the lock
// serializes concurrent mutations for one terminal (double-submits) without
// coupling unrelated terminals.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func cartKey(terminalID string) string {
	return "cart:" + terminalID
}

func totalsKey(terminalID string) string {
	return "totals:" + terminalID
}

func lockKey(terminalID string) string {
	return "lock:cart:" + terminalID
}

func (s *Store) Get(ctx context.Context, terminalID string) (*domain.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(terminalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cart read failed: %w", err)
	}
	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &c, nil
}

func (s *Store) Save(ctx context.Context, c *domain.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(c.TerminalID), data, cartTTL).Err(); err != nil {
		return fmt.Errorf("cart write failed: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, terminalID string) error {
	if err := s.client.Del(ctx, cartKey(terminalID), totalsKey(terminalID)).Err(); err != nil {
		return fmt.Errorf("cart delete failed: %w", err)
	}
	return nil
}

// cachedTotals pins a TotalsResult to the cart revision it was computed
// from, so a stale cache entry is never served after a mutation.
type cachedTotals struct {
	Revision int64                `json:"revision"`
	Result   *domain.TotalsResult `json:"result"`
}

func (s *Store) GetTotals(ctx context.Context, terminalID string, revision int64) (*domain.TotalsResult, bool) {
	data, err := s.client.Get(ctx, totalsKey(terminalID)).Bytes()
	if err != nil {
		return nil, false
	}
	var ct cachedTotals
	if err := json.Unmarshal(data, &ct); err != nil || ct.Revision != revision {
		return nil, false
	}
	return ct.Result, true
}

func (s *Store) SetTotals(ctx context.Context, terminalID string, revision int64, res *domain.TotalsResult) error {
	data, err := json.Marshal(cachedTotals{Revision: revision, Result: res})
	if err != nil {
		return fmt.Errorf("marshal totals failed: %w", err)
	}
	if err := s.client.Set(ctx, totalsKey(terminalID), data, totalsTTL).Err(); err != nil {
		return fmt.Errorf("totals write failed: %w", err)
	}
	return nil
}

func (s *Store) InvalidateTotals(ctx context.Context, terminalID string) error {
	if err := s.client.Del(ctx, totalsKey(terminalID)).Err(); err != nil {
		return fmt.Errorf("totals invalidate failed: %w", err)
	}
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Lock acquires the terminal's mutation lock, retrying briefly before giving
// up with domain.ErrCartBusy. The returned function releases the lock only
// if this caller still owns it (the lock auto-expires as a crash guard).
func (s *Store) Lock(ctx context.Context, terminalID string) (func(), error) {
	token := uuid.New().String()
	deadline := time.Now().Add(lockWait)
	for {
		ok, err := s.client.SetNX(ctx, lockKey(terminalID), token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock acquire failed: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, domain.ErrCartBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryGap):
		}
	}
	return func() {
		// Release on a fresh context; the request's context may be done.
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = unlockScript.Run(rctx, s.client, []string{lockKey(terminalID)}, token).Err()
	}, nil
}
