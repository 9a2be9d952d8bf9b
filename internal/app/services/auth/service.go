// Package auth issues, validates, refreshes, and revokes bearer tokens. A
// token is not a capability: the issuance record kept by the token store is
// the authority for revocation, independent of the token's embedded expiry.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/app/domain/user"
	"github.com/taskforge/taskforge/internal/app/storage"
	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/pkg/logger"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// Typed validation failures.
var (
	ErrExpired          = errors.Unauthenticated("token expired")
	ErrMalformed        = errors.Unauthenticated("token malformed")
	ErrSignatureInvalid = errors.Unauthenticated("token signature invalid")
	ErrRevoked          = errors.Unauthenticated("token revoked")
	ErrUnknownSubject   = errors.Unauthenticated("token subject unknown or inactive")
	ErrBadCredentials   = errors.Unauthenticated("invalid credentials")
)

// Claims is the JWT payload carried by every issued token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Service implements the token service.
type Service struct {
	users  storage.UserStore
	tokens storage.TokenStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

// New constructs an auth service. ttl <= 0 falls back to DefaultTTL.
func New(users storage.UserStore, tokens storage.TokenStore, secret []byte, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{users: users, tokens: tokens, secret: secret, ttl: ttl, log: log}
}

// HashToken returns the SHA-256 hex digest used to key issuance records. Raw
// tokens are never persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Register creates a user and issues their first token.
func (s *Service) Register(ctx context.Context, email, displayName, password string) (user.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, "", errors.InvalidInput("a valid email is required")
	}
	if len(password) < 8 {
		return user.User{}, "", errors.InvalidInput("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		Active:       true,
		PasswordHash: string(hash),
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			return user.User{}, "", errors.Conflict("email already registered")
		}
		return user.User{}, "", errors.Storage("create user", err)
	}

	tok, err := s.Issue(ctx, created)
	if err != nil {
		return user.User{}, "", err
	}

	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, tok, nil
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", ErrBadCredentials
		}
		return user.User{}, "", errors.Storage("get user", err)
	}
	if !u.Active {
		return user.User{}, "", ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return user.User{}, "", ErrBadCredentials
	}

	tok, err := s.Issue(ctx, u)
	if err != nil {
		return user.User{}, "", err
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, tok, nil
}

// Issue signs a fresh token for the user and records the issuance. Multiple
// tokens may be concurrently valid for one user.
func (s *Service) Issue(ctx context.Context, u user.User) (string, error) {
	now := time.Now().UTC()
	expires := now.Add(s.ttl)

	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "taskforge",
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	iss := token.Issuance{Hash: HashToken(raw), UserID: u.ID, IssuedAt: now, ExpiresAt: expires}
	if err := s.tokens.PutIssuance(ctx, iss); err != nil {
		return "", errors.Storage("record issuance", err)
	}

	s.log.WithField("user_id", u.ID).Debug("token issued")
	return raw, nil
}

// Validate verifies signature and expiry, checks the issuance record, and
// re-resolves the subject. A revoked token is rejected even when its embedded
// expiry has not elapsed.
func (s *Service) Validate(ctx context.Context, raw string) (token.Identity, error) {
	claims, err := s.parse(raw, true)
	if err != nil {
		return token.Identity{}, err
	}

	if _, err := s.tokens.GetIssuance(ctx, HashToken(raw)); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return token.Identity{}, ErrRevoked
		}
		return token.Identity{}, errors.Storage("check issuance", err)
	}

	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil || !u.Active {
		return token.Identity{}, ErrUnknownSubject
	}

	return token.Identity{UserID: u.ID, Email: u.Email}, nil
}

// Refresh accepts a token whose signature is valid, ignoring expiry for this
// call only, and issues a replacement. A revoked token cannot be refreshed.
func (s *Service) Refresh(ctx context.Context, raw string) (string, error) {
	claims, err := s.parse(raw, false)
	if err != nil {
		return "", err
	}

	if _, err := s.tokens.GetIssuance(ctx, HashToken(raw)); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return "", ErrRevoked
		}
		return "", errors.Storage("check issuance", err)
	}

	u, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil || !u.Active {
		return "", ErrUnknownSubject
	}

	fresh, err := s.Issue(ctx, u)
	if err != nil {
		return "", err
	}

	s.log.WithField("user_id", u.ID).Info("token refreshed")
	return fresh, nil
}

// Revoke invalidates one token, e.g. on logout. Revoking an unknown token is
// a no-op success.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	err := s.tokens.DeleteIssuance(ctx, HashToken(raw))
	if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
		return errors.Storage("revoke token", err)
	}
	return nil
}

// RevokeAll invalidates every outstanding token for a user, used on password
// change.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteIssuancesForUser(ctx, userID); err != nil {
		return errors.Storage("revoke all tokens", err)
	}
	s.log.WithField("user_id", userID).Info("all tokens revoked")
	return nil
}

// ChangePassword verifies the old password, rotates the hash, revokes every
// outstanding token, and issues a replacement.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (string, error) {
	if len(newPassword) < 8 {
		return "", errors.InvalidInput("password must be at least 8 characters")
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return "", errors.NotFound("user", userID)
		}
		return "", errors.Storage("get user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return "", ErrBadCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return "", errors.Storage("update user", err)
	}

	if err := s.RevokeAll(ctx, userID); err != nil {
		return "", err
	}

	fresh, err := s.Issue(ctx, u)
	if err != nil {
		return "", err
	}

	s.log.WithField("user_id", userID).Info("password changed")
	return fresh, nil
}

// parse verifies the JWT and maps library failures onto the typed taxonomy.
// With verifyExpiry false the signature is still required; only the exp claim
// is ignored.
func (s *Service) parse(raw string, verifyExpiry bool) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if !verifyExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}
