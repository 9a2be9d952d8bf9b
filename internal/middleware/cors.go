package middleware

import (
	"net/http"
	"strings"
)

// CORSMiddleware handles cross-origin requests for browser clients.
type CORSMiddleware struct {
	allowedOrigins []string
	allowAll       bool
}

// NewCORSMiddleware creates the middleware. An entry of "*" allows every
// origin; an empty list disables CORS headers entirely.
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
	}
	return &CORSMiddleware{allowedOrigins: allowedOrigins, allowAll: allowAll}
}

func (m *CORSMiddleware) allowed(origin string) bool {
	if m.allowAll {
		return true
	}
	for _, candidate := range m.allowedOrigins {
		if strings.EqualFold(candidate, origin) {
			return true
		}
	}
	return false
}

// Handler returns the CORS middleware handler.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && m.allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
