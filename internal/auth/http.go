// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts the bearer token from the Authorization header and adds Identity to context

package auth

import (
	"net/http"
	"strings"
)

// ExtractBearerToken extracts a bearer token from an Authorization header
// value. Returns the token and an error message (empty if successful).
func ExtractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and
// validates bearer tokens, adding the Identity to the request context.
func HTTPAuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := ExtractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				unauthorized(w, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			identity := &Identity{UserID: userID}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `","kind":"unauthenticated"}`))
}
