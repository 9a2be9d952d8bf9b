// Package redis provides a token issuance store backed by Redis. Records
// expire automatically with the token TTL, so revocation checks never honor a
// stale issuance.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/app/storage"
)

const (
	tokenKeyPrefix = "tf:token:"
	userSetPrefix  = "tf:user_tokens:"
)

// TokenStore implements storage.TokenStore on a Redis client.
type TokenStore struct {
	client *redis.Client
}

var _ storage.TokenStore = (*TokenStore)(nil)

// NewTokenStore wraps an existing client.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

type record struct {
	UserID    string    `json:"user_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *TokenStore) PutIssuance(ctx context.Context, iss token.Issuance) error {
	payload, err := json.Marshal(record{UserID: iss.UserID, IssuedAt: iss.IssuedAt, ExpiresAt: iss.ExpiresAt})
	if err != nil {
		return err
	}

	ttl := time.Until(iss.ExpiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to honor
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKeyPrefix+iss.Hash, payload, ttl)
	pipe.SAdd(ctx, userSetPrefix+iss.UserID, iss.Hash)
	pipe.ExpireAt(ctx, userSetPrefix+iss.UserID, iss.ExpiresAt)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *TokenStore) GetIssuance(ctx context.Context, hash string) (token.Issuance, error) {
	raw, err := s.client.Get(ctx, tokenKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return token.Issuance{}, storage.ErrNotFound
	}
	if err != nil {
		return token.Issuance{}, err
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return token.Issuance{}, err
	}
	return token.Issuance{Hash: hash, UserID: rec.UserID, IssuedAt: rec.IssuedAt, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *TokenStore) DeleteIssuance(ctx context.Context, hash string) error {
	iss, err := s.GetIssuance(ctx, hash)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+hash)
	pipe.SRem(ctx, userSetPrefix+iss.UserID, hash)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *TokenStore) DeleteIssuancesForUser(ctx context.Context, userID string) error {
	hashes, err := s.client.SMembers(ctx, userSetPrefix+userID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, hash := range hashes {
		pipe.Del(ctx, tokenKeyPrefix+hash)
	}
	pipe.Del(ctx, userSetPrefix+userID)
	_, err = pipe.Exec(ctx)
	return err
}
