package token

import "time"

// Issuance is the bookkeeping record for one issued bearer token. The record
// stores only the SHA-256 hash of the token string, never the token itself.
// Revocation removes the record; a token whose record is gone is rejected no
// matter how much validity its embedded expiry claims.
type Issuance struct {
	Hash      string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity is the resolved caller identity produced by validation. Every core
// operation takes it explicitly; nothing reads an ambient current user.
type Identity struct {
	UserID string
	Email  string
}
