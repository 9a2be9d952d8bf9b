package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskforge/taskforge/internal/app/domain/token"
)

func TestRateLimiterThrottlesPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.Handler(next)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := do("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("first request: %d", got)
	}
	if got := do("10.0.0.1:1234"); got != http.StatusOK {
		t.Fatalf("burst request: %d", got)
	}
	if got := do("10.0.0.1:5678"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for exhausted client, got %d", got)
	}
	// A different address has its own budget.
	if got := do("10.0.0.2:1234"); got != http.StatusOK {
		t.Fatalf("separate client throttled: %d", got)
	}
}

func TestRateLimiterKeysAuthenticatedByUser(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.Handler(next)

	do := func(userID, addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
		req.RemoteAddr = addr
		req = req.WithContext(WithIdentity(req.Context(), token.Identity{UserID: userID}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := do("u1", "10.0.0.1:1"); got != http.StatusOK {
		t.Fatalf("first request: %d", got)
	}
	if got := do("u1", "10.0.0.9:1"); got != http.StatusTooManyRequests {
		t.Fatalf("expected user key to span addresses, got %d", got)
	}
	if got := do("u2", "10.0.0.1:1"); got != http.StatusOK {
		t.Fatalf("second user throttled: %d", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://app.example.com"})
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := m.Handler(next)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allowed origin not reflected: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin allowed: %q", got)
	}

	// Preflight short-circuits before the handler.
	req = httptest.NewRequest(http.MethodOptions, "/projects", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	m := NewRequestIDMiddleware(nil)
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := m.Handler(next)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen == "" {
		t.Fatal("no request id in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("header %q does not match context id %q", got, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "client-supplied" {
		t.Fatalf("client id not honored: %q", seen)
	}
}
