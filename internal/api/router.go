// ABOUTME: HTTP route wiring for the gateway process
// ABOUTME: Public auth endpoints, bearer-protected conversation endpoints, websocket upgrade

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/parleyhq/parley/internal/auth"
)

// NewRouter assembles the full HTTP surface. The websocket handler does
// its own handshake authentication, so it sits outside the middleware.
func NewRouter(h *Handlers, verifier auth.TokenVerifier, ws http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	r.HandleFunc("/auth/signup", h.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", h.SignIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost)

	r.HandleFunc("/users/username-availability", h.UsernameAvailability).Methods(http.MethodGet)

	r.Handle("/ws", ws).Methods(http.MethodGet)

	protected := r.PathPrefix("/conversations").Subrouter()
	protected.Use(auth.HTTPAuthMiddleware(verifier))
	protected.HandleFunc("", h.CreateOrGetConversation).Methods(http.MethodPost)
	protected.HandleFunc("/all", h.ListConversations).Methods(http.MethodGet)
	protected.HandleFunc("/{conversationId}/messages", h.GetMessages).Methods(http.MethodGet)

	return r
}
