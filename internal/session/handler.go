// Package session manages the terminal-to-cart binding: create, validate,
// extend and destroy, with cascade cleanup of the cart and its stock
// reservations on destroy.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
)

// DefaultTTL is the lifetime of a freshly created session.
const DefaultTTL = 4 * time.Hour

// Handler owns the session lifecycle. Sessions live in Redis under
// session:{terminal_id} with a matching key TTL, so an expired session
// disappears on its own; ValidAt is still re-checked on every read because
// the record can outlive its logical expiry briefly.
type Handler struct {
	client *redis.Client
	clk    clock.Clock
	ttl    time.Duration

	// DestroyHook runs after a session is removed, releasing the owned cart
	// and any stock reservations tied to it. Wired at startup.
	DestroyHook func(ctx context.Context, terminalID string) error
}

func NewHandler(client *redis.Client, clk clock.Clock, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Handler{client: client, clk: clk, ttl: ttl}
}

func sessionKey(terminalID string) string {
	return "session:" + terminalID
}

// Create starts a new session for the terminal, replacing any existing one.
func (h *Handler) Create(ctx context.Context, terminalID string, customerID int64) (*domain.CartSession, error) {
	if terminalID == "" {
		return nil, domain.ErrTerminalIDRequired
	}
	now := h.clk.Now()
	s := &domain.CartSession{
		TerminalID: terminalID,
		SessionID:  uuid.New().String(),
		CustomerID: customerID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(h.ttl),
	}
	if err := h.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads the terminal's session. ErrSessionInvalid when absent,
// ErrSessionExpired when past its expiry.
func (h *Handler) Get(ctx context.Context, terminalID string) (*domain.CartSession, error) {
	if terminalID == "" {
		return nil, domain.ErrTerminalIDRequired
	}
	data, err := h.client.Get(ctx, sessionKey(terminalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("session read failed: %w", err)
	}
	var s domain.CartSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	if !s.ValidAt(h.clk.Now()) {
		return nil, domain.ErrSessionExpired
	}
	return &s, nil
}

// GetOrCreate resolves the terminal's session, creating one implicitly on
// first cart access.
func (h *Handler) GetOrCreate(ctx context.Context, terminalID string) (*domain.CartSession, error) {
	s, err := h.Get(ctx, terminalID)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, domain.ErrSessionInvalid) || errors.Is(err, domain.ErrSessionExpired) {
		return h.Create(ctx, terminalID, 0)
	}
	return nil, err
}

// Validate succeeds iff the session exists, the session id matches the
// terminal's current session, and the expiry is in the future.
func (h *Handler) Validate(ctx context.Context, sessionID, terminalID string) (*domain.CartSession, error) {
	s, err := h.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	if sessionID == "" || s.SessionID != sessionID {
		return nil, domain.ErrSessionInvalid
	}
	return s, nil
}

// Extend pushes the expiry forward by the given duration.
func (h *Handler) Extend(ctx context.Context, terminalID string, additional time.Duration) (*domain.CartSession, error) {
	if additional <= 0 {
		additional = h.ttl
	}
	s, err := h.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = s.ExpiresAt.Add(additional)
	if err := h.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Destroy removes the session and cascades cleanup of the owned cart and
// stock reservations. Destroying an absent session is not an error.
func (h *Handler) Destroy(ctx context.Context, terminalID string) error {
	if terminalID == "" {
		return domain.ErrTerminalIDRequired
	}
	if err := h.client.Del(ctx, sessionKey(terminalID)).Err(); err != nil {
		return fmt.Errorf("session delete failed: %w", err)
	}
	if h.DestroyHook != nil {
		if err := h.DestroyHook(ctx, terminalID); err != nil {
			return fmt.Errorf("session cascade cleanup failed: %w", err)
		}
	}
	return nil
}

// SetCustomerID attaches a customer to the session.
func (h *Handler) SetCustomerID(ctx context.Context, terminalID string, customerID int64) (*domain.CartSession, error) {
	s, err := h.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	s.CustomerID = customerID
	if err := h.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLocation stores the customer's tax jurisdiction on the session.
func (h *Handler) SetLocation(ctx context.Context, terminalID string, loc domain.Location) (*domain.CartSession, error) {
	s, err := h.Get(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	s.Location = loc
	if err := h.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *Handler) save(ctx context.Context, s *domain.CartSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	ttl := s.ExpiresAt.Sub(h.clk.Now())
	if ttl <= 0 {
		return domain.ErrSessionExpired
	}
	if err := h.client.Set(ctx, sessionKey(s.TerminalID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session write failed: %w", err)
	}
	return nil
}
