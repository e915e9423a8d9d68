// Package session issues, validates and revokes opaque login sessions.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// TokenBytes is the number of random bytes behind every session token.
const TokenBytes = 48

// Session is one authenticated login.
type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// Store keeps sessions keyed by token. Implementations are safe for concurrent use.
type Store interface {
	// Issue creates a session for username that expires after the store TTL.
	Issue(ctx context.Context, username string) (Session, error)
	// Validate returns the username for a live token.
	Validate(ctx context.Context, token string) (string, bool)
	// Revoke removes token. Revoking an unknown token is not an error.
	Revoke(ctx context.Context, token string) error
	// Sweep removes expired sessions and reports how many were removed.
	Sweep(ctx context.Context) int
	// Len reports how many sessions are stored.
	Len() int
}

// Clock returns the current time.
type Clock func() time.Time

// NewToken returns TokenBytes of crypto-random data, hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
