package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskforge/taskforge/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, []byte("test-secret"), 0, nil), store
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, tok, err := svc.Register(ctx, "alice@example.com", "Alice", "hunter2pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected generated user id")
	}
	if u.PasswordHash == "hunter2pass" {
		t.Fatalf("password stored in plaintext")
	}
	if tok == "" {
		t.Fatalf("expected a token on registration")
	}

	if _, _, err := svc.Register(ctx, "alice@example.com", "Alice Again", "hunter2pass"); err == nil {
		t.Fatalf("expected duplicate email to fail")
	}

	_, loginTok, err := svc.Login(ctx, "alice@example.com", "hunter2pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	id, err := svc.Validate(ctx, loginTok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id.UserID != u.ID || id.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2pass"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for unknown email, got %v", err)
	}
}

func TestValidateRejectsTamperedAndForeignTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, tok, err := svc.Register(ctx, "bob@example.com", "Bob", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Validate(ctx, tok+"x"); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
	if _, err := svc.Validate(ctx, "not-a-jwt"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	otherStore := memory.New()
	other := New(otherStore, otherStore, []byte("different-secret"), 0, nil)
	u2, _, err := other.Register(ctx, "bob@example.com", "Bob", "password123")
	if err != nil {
		t.Fatalf("register on other service: %v", err)
	}
	foreign, err := other.Issue(ctx, u2)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Validate(ctx, foreign); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for foreign token, got %v", err)
	}
}

func TestExpiredTokenRefreshesButDoesNotValidate(t *testing.T) {
	store := memory.New()
	svc := New(store, store, []byte("test-secret"), time.Millisecond, nil)
	ctx := context.Background()

	_, tok, err := svc.Register(ctx, "carol@example.com", "Carol", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := svc.Validate(ctx, tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	fresh, err := svc.Refresh(ctx, tok)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	svc.ttl = DefaultTTL
	reissued, err := svc.Refresh(ctx, fresh)
	if err != nil {
		t.Fatalf("refresh fresh token: %v", err)
	}
	if _, err := svc.Validate(ctx, reissued); err != nil {
		t.Fatalf("validate refreshed token: %v", err)
	}
}

func TestRevokeBlocksValidateAndRefresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, tok, err := svc.Register(ctx, "dave@example.com", "Dave", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Revoke(ctx, tok); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Revoking twice is a no-op.
	if err := svc.Revoke(ctx, tok); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	if _, err := svc.Validate(ctx, tok); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked on validate, got %v", err)
	}
	if _, err := svc.Refresh(ctx, tok); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked on refresh, got %v", err)
	}
}

func TestRevokeAllInvalidatesEveryToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, tok1, err := svc.Register(ctx, "erin@example.com", "Erin", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, tok2, err := svc.Login(ctx, "erin@example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.RevokeAll(ctx, u.ID); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if _, err := svc.Validate(ctx, tok1); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked for first token, got %v", err)
	}
	if _, err := svc.Validate(ctx, tok2); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked for second token, got %v", err)
	}
}

func TestChangePasswordRotatesCredentialsAndTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, oldTok, err := svc.Register(ctx, "frank@example.com", "Frank", "oldpassword1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.ChangePassword(ctx, u.ID, "wrong-old", "newpassword1"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for wrong old password, got %v", err)
	}

	newTok, err := svc.ChangePassword(ctx, u.ID, "oldpassword1", "newpassword1")
	if err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := svc.Validate(ctx, oldTok); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected old token revoked, got %v", err)
	}
	if _, err := svc.Validate(ctx, newTok); err != nil {
		t.Fatalf("validate new token: %v", err)
	}

	if _, _, err := svc.Login(ctx, "frank@example.com", "oldpassword1"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "frank@example.com", "newpassword1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "X", "password123"); err == nil {
		t.Fatalf("expected invalid email to fail")
	}
	if _, _, err := svc.Register(ctx, "x@example.com", "X", "short"); err == nil {
		t.Fatalf("expected short password to fail")
	}
}
