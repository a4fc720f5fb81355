package model

import "context"

// PasswordHasher derives and verifies salted password hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (hash string, salt string, err error)
	Verify(ctx context.Context, password, hash, salt string) bool
}

// RateLimiter bounds attempts per client identity.
type RateLimiter interface {
	Allow(ctx context.Context, clientID string) (bool, error)
}
