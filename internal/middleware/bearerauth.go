// Package middleware provides HTTP middlewares for bearer authentication and
// request logging used by the fake story API.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey string

const userKey ctxKey = "user"

// TokenResolver maps a bearer token to the user it was issued to.
type TokenResolver interface {
	UserForToken(token string) (string, bool)
}

// BearerAuth is a middleware that enforces "Authorization: Bearer <token>".
//
// Requests without a header get 401 "Missing authentication"; requests with
// an unknown token get 401 "Invalid token". On success the user ID the token
// resolves to is stored in the request context, so it can be used
// downstream as the authenticated user ID.
func BearerAuth(tokens TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, "Missing authentication")
				return
			}
			user, ok := tokens.UserForToken(token)
			if !ok {
				unauthorized(w, "Invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   true,
		"message": message,
	})
}
