package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/poskit/pos-cart/internal/session"
)

// SessionHandler exposes the session lifecycle over HTTP.
type SessionHandler struct {
	sessions *session.Handler
	log      *zap.Logger
}

func NewSessionHandler(sessions *session.Handler, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log}
}

type createSessionDTO struct {
	TerminalID string `json:"terminal_id"`
	UserID     int64  `json:"user_id,omitempty"`
}

type extendSessionDTO struct {
	TerminalID        string `json:"terminal_id,omitempty"`
	AdditionalSeconds int64  `json:"additional_seconds"`
}

// Create handles POST /cart/session/create.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid := resolveTerminal(r, req.TerminalID)
	s, err := h.sessions.Create(r.Context(), tid, req.UserID)
	if err != nil {
		respondDomainError(w, h.log, "session_create", tid, err)
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

// Validate handles GET /cart/session/validate?session_id=….
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	s, err := h.sessions.Validate(r.Context(), sessionID, tid)
	if err != nil {
		respondDomainError(w, h.log, "session_validate", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// Extend handles PUT /cart/session/extend.
func (h *SessionHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendSessionDTO
	if !decodeBody(w, r, &req) {
		return
	}
	tid, ok := requireTerminal(w, r, req.TerminalID)
	if !ok {
		return
	}
	s, err := h.sessions.Extend(r.Context(), tid, time.Duration(req.AdditionalSeconds)*time.Second)
	if err != nil {
		respondDomainError(w, h.log, "session_extend", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// Destroy handles DELETE /cart/session/destroy: removes the session and
// cascades cleanup of the cart and its stock reservations.
func (h *SessionHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	tid, ok := requireTerminal(w, r, "")
	if !ok {
		return
	}
	if err := h.sessions.Destroy(r.Context(), tid); err != nil {
		respondDomainError(w, h.log, "session_destroy", tid, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"destroyed": true})
}
