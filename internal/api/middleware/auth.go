package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/grocery-ordering/internal/auth"
)

// TokenVerifier is satisfied by *auth.JWTService.
type TokenVerifier interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Identity is the authenticated caller. Credential is the raw bearer token,
// kept so it can be forwarded to other services on the caller's behalf.
type Identity struct {
	UserID     string
	Email      string
	Credential string
}

type contextKey string

const identityContextKey contextKey = "identity"

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// AuthMiddleware validates JWT tokens and adds the caller's Identity to context
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				respondError(w, "unauthorized", "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.ValidateAccessToken(tokenString)
			if err != nil {
				respondError(w, err.Error(), "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), Identity{
				UserID:     claims.UserID,
				Email:      claims.Email,
				Credential: tokenString,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the caller from the request context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
