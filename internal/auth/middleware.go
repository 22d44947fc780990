package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is used for storing claims in request context.
type ContextKey string

const (
	// ClaimsKey is the request context key for verified claims.
	ClaimsKey ContextKey = "claims"
)

// Middleware enforces bearer token authentication and scope checks.
type Middleware struct {
	verifier *Verifier
	disabled bool
}

// NewMiddleware creates the auth middleware. When disabled, every request
// runs as an anonymous operator holding both scopes; meant for lab bring-up
// behind a closed port only.
func NewMiddleware(verifier *Verifier, disabled bool) *Middleware {
	return &Middleware{verifier: verifier, disabled: disabled}
}

// RequireScope wraps next with authentication plus a single scope check.
func (m *Middleware) RequireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			claims := &Claims{Subject: "anonymous", Scopes: []string{ScopeRead, ScopeControl}}
			next(w, r.WithContext(context.WithValue(r.Context(), ClaimsKey, claims)))
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}

		if !claims.HasScope(scope) {
			writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ClaimsKey, claims)))
	}
}

// GetClaimsFromRequest extracts verified claims from the request context.
func GetClaimsFromRequest(r *http.Request) *Claims {
	claims, ok := r.Context().Value(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// SubjectFromRequest returns the token subject, or "unknown" before auth.
func SubjectFromRequest(r *http.Request) string {
	if claims := GetClaimsFromRequest(r); claims != nil {
		return claims.Subject
	}
	return "unknown"
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", errors.New("empty token")
	}
	return token, nil
}

// writeAuthError writes an error response in the API envelope format.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": uuid.NewString(),
	})
}
