package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poskit/pos-cart/internal/clock"
	"github.com/poskit/pos-cart/internal/domain"
)

func setupHandler(t *testing.T) (*Handler, *clock.Fixed) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clk := clock.NewFixed(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	return NewHandler(client, clk, time.Hour), clk
}

func TestCreate_RequiresTerminalID(t *testing.T) {
	h, _ := setupHandler(t)
	_, err := h.Create(context.Background(), "", 0)
	assert.ErrorIs(t, err, domain.ErrTerminalIDRequired)
}

func TestCreate_ThenGet(t *testing.T) {
	h, clk := setupHandler(t)
	ctx := context.Background()

	s, err := h.Create(ctx, "T1", 7)
	require.NoError(t, err)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, int64(7), s.CustomerID)
	assert.Equal(t, clk.Now().Add(time.Hour), s.ExpiresAt)

	got, err := h.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, got.SessionID)
}

func TestGet_MissingSession(t *testing.T) {
	h, _ := setupHandler(t)
	_, err := h.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestValidate_TerminalMismatch(t *testing.T) {
	h, _ := setupHandler(t)
	ctx := context.Background()

	s, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)

	// Correct session id, wrong terminal: still invalid.
	_, err = h.Validate(ctx, s.SessionID, "T2")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)

	_, err = h.Validate(ctx, s.SessionID, "T1")
	assert.NoError(t, err)
}

func TestValidate_WrongSessionID(t *testing.T) {
	h, _ := setupHandler(t)
	ctx := context.Background()

	_, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)

	_, err = h.Validate(ctx, "bogus", "T1")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestGet_ExpiredSession(t *testing.T) {
	h, clk := setupHandler(t)
	ctx := context.Background()

	_, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)

	_, err = h.Get(ctx, "T1")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestExtend_PushesExpiryForward(t *testing.T) {
	h, clk := setupHandler(t)
	ctx := context.Background()

	s, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)

	clk.Advance(50 * time.Minute)
	extended, err := h.Extend(ctx, "T1", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, s.ExpiresAt.Add(30*time.Minute), extended.ExpiresAt)

	clk.Advance(35 * time.Minute)
	_, err = h.Get(ctx, "T1")
	assert.NoError(t, err, "session is still alive inside the extension")
}

func TestExtend_ExpiredSessionFails(t *testing.T) {
	h, clk := setupHandler(t)
	ctx := context.Background()

	_, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)

	_, err = h.Extend(ctx, "T1", time.Hour)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestGetOrCreate_ReplacesExpired(t *testing.T) {
	h, clk := setupHandler(t)
	ctx := context.Background()

	s1, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)

	s2, err := h.GetOrCreate(ctx, "T1")
	require.NoError(t, err)
	assert.NotEqual(t, s1.SessionID, s2.SessionID, "a terminal state cannot be revived")
}

func TestDestroy_RunsCascade(t *testing.T) {
	h, _ := setupHandler(t)
	ctx := context.Background()

	_, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)

	var cascaded string
	h.DestroyHook = func(_ context.Context, terminalID string) error {
		cascaded = terminalID
		return nil
	}

	require.NoError(t, h.Destroy(ctx, "T1"))
	assert.Equal(t, "T1", cascaded)

	_, err = h.Get(ctx, "T1")
	assert.ErrorIs(t, err, domain.ErrSessionInvalid)
}

func TestSetCustomerAndLocation(t *testing.T) {
	h, _ := setupHandler(t)
	ctx := context.Background()

	_, err := h.Create(ctx, "T1", 0)
	require.NoError(t, err)

	s, err := h.SetCustomerID(ctx, "T1", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), s.CustomerID)

	loc := domain.Location{Country: "US", State: "CA", City: "Oakland"}
	s, err = h.SetLocation(ctx, "T1", loc)
	require.NoError(t, err)
	assert.Equal(t, loc, s.Location)

	got, err := h.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.CustomerID)
	assert.Equal(t, loc, got.Location)
}
