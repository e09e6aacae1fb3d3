package httpapi

import (
	"context"
	"net/http"
)

type contextKey string

const terminalIDKey contextKey = "terminal_id"

// TerminalBindingMiddleware resolves the caller's terminal from the
// X-Terminal-ID header and stores it on the request context. Authentication
// proper (bearer/cookie) is assumed handled in front of this service; the
// header is the terminal binding it produces. Endpoints may still override
// via an explicit terminal_id in body or query.
func TerminalBindingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tid := r.Header.Get("X-Terminal-ID"); tid != "" {
			r = r.WithContext(context.WithValue(r.Context(), terminalIDKey, tid))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveTerminal prefers an explicit terminal_id (body field already
// parsed by the handler, then query param), falling back to the session
// binding from the middleware. Empty string means unresolved.
func resolveTerminal(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if q := r.URL.Query().Get("terminal_id"); q != "" {
		return q
	}
	if tid, ok := r.Context().Value(terminalIDKey).(string); ok {
		return tid
	}
	return ""
}
