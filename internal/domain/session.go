package domain

import "time"

// SessionState tracks the lifecycle of a terminal session. Expired and
// Destroyed are terminal states; a new session must be created to continue.
type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionExpired   SessionState = "expired"
	SessionDestroyed SessionState = "destroyed"
)

// CartSession binds a POS terminal to its server-side cart, customer and tax
// jurisdiction. Keyed by TerminalID in the shared store.
type CartSession struct {
	TerminalID string    `json:"terminal_id"`
	SessionID  string    `json:"session_id"`
	CustomerID int64     `json:"customer_id"` // 0 = guest
	Location   Location  `json:"customer_location"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ValidAt reports whether the session is still usable at the given instant.
func (s *CartSession) ValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
