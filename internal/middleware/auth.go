// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/pkg/logger"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// IdentityFrom extracts the authenticated identity placed by AuthMiddleware.
func IdentityFrom(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(identityKey).(token.Identity)
	return id, ok
}

// WithIdentity returns a context carrying the identity. Exposed for handler
// tests.
func WithIdentity(ctx context.Context, id token.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// TokenValidator resolves a bearer token to an identity. The auth service
// implements it; validation includes the revocation check, not just the
// signature.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (token.Identity, error)
}

// AuthMiddleware authenticates requests with bearer session tokens.
type AuthMiddleware struct {
	validator TokenValidator
	log       *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the middleware. Requests to skipPaths pass
// through unauthenticated.
func NewAuthMiddleware(validator TokenValidator, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{validator: validator, log: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := ExtractBearer(r)
		if err != nil {
			m.respondError(w, err)
			return
		}

		id, err := m.validator.Validate(r.Context(), raw)
		if err != nil {
			m.log.WithError(err).Warn("token validation failed")
			m.respondError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// ExtractBearer pulls the token from the Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.Unauthenticated("missing Authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Unauthenticated("invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	message := "unauthenticated"
	if se := errors.GetServiceError(err); se != nil {
		status = se.HTTPStatus
		message = se.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
