package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/errors"
)

type stubValidator struct {
	identity token.Identity
	err      error
	calls    int
}

func (s *stubValidator) Validate(_ context.Context, _ string) (token.Identity, error) {
	s.calls++
	if s.err != nil {
		return token.Identity{}, s.err
	}
	return s.identity, nil
}

func passthrough(t *testing.T, wantIdentity bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := IdentityFrom(r.Context())
		if ok != wantIdentity {
			t.Errorf("identity presence = %v, want %v", ok, wantIdentity)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	validator := &stubValidator{identity: token.Identity{UserID: "u1", Email: "a@example.com"}}
	mw := NewAuthMiddleware(validator, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	resp := httptest.NewRecorder()
	mw.Handler(passthrough(t, true)).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if validator.calls != 1 {
		t.Fatalf("validator called %d times", validator.calls)
	}
}

func TestAuthMiddlewareMissingAndMalformedHeaders(t *testing.T) {
	validator := &stubValidator{identity: token.Identity{UserID: "u1"}}
	mw := NewAuthMiddleware(validator, nil, nil)
	handler := mw.Handler(passthrough(t, true))

	for _, header := range []string{"", "some-token", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, resp.Code)
		}
	}
	if validator.calls != 0 {
		t.Fatalf("validator should not run on malformed headers, ran %d times", validator.calls)
	}
}

func TestAuthMiddlewareRejectedToken(t *testing.T) {
	validator := &stubValidator{err: errors.Unauthenticated("token has been revoked")}
	mw := NewAuthMiddleware(validator, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer revoked")
	resp := httptest.NewRecorder()
	mw.Handler(passthrough(t, true)).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareSkipPaths(t *testing.T) {
	validator := &stubValidator{}
	mw := NewAuthMiddleware(validator, nil, []string{"/healthz"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	mw.Handler(passthrough(t, false)).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on skip path, got %d", resp.Code)
	}
	if validator.calls != 0 {
		t.Fatalf("validator ran on skip path")
	}
}
