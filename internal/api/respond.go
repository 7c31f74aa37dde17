// ABOUTME: JSON response helpers and error-kind mapping for the HTTP API
// ABOUTME: Maps domain sentinel errors onto status codes and structured bodies

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/conversation"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/users"
)

// errorBody is the wire shape of every error response
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError translates a domain error into a structured HTTP response.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr validator.ValidationErrors

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingClaim),
		errors.Is(err, users.ErrBadCredentials):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Kind: "unauthenticated"})

	case errors.Is(err, conversation.ErrNotParticipant):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error(), Kind: "forbidden"})

	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Kind: "not_found"})

	case errors.Is(err, conversation.ErrSelfConversation),
		errors.Is(err, conversation.ErrEmptyContent),
		errors.Is(err, conversation.ErrBadCursor),
		errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "invalid_operation"})

	case errors.Is(err, store.ErrDuplicateUser):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "invalid_operation"})

	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "backend did not respond in time", Kind: "unavailable"})

	default:
		logger.Error("unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: "internal"})
	}
}
