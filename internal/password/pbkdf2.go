// Package password derives and verifies salted PBKDF2-HMAC-SHA256 password hashes.
package password

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/semaphore"

	"github.com/dtroode/authgate/internal/model"
)

const (
	// MinIterations is the lowest accepted PBKDF2 iteration count.
	MinIterations = 100_000
	// MinSaltBytes is the lowest accepted salt length (128 bits).
	MinSaltBytes = 16
	// KeyBytes is the derived key length (256 bits).
	KeyBytes = 32
)

var _ model.PasswordHasher = (*Hasher)(nil)

// Params configures a Hasher. Values below the minimums are raised to them.
type Params struct {
	Iterations    int
	SaltBytes     int
	MaxConcurrent int
}

// Hasher implements model.PasswordHasher.
// Derivations are CPU bound, so at most MaxConcurrent of them run at once.
type Hasher struct {
	iterations int
	saltBytes  int
	sem        *semaphore.Weighted
}

// NewHasher creates a Hasher from params.
func NewHasher(params Params) *Hasher {
	if params.Iterations < MinIterations {
		params.Iterations = MinIterations
	}
	if params.SaltBytes < MinSaltBytes {
		params.SaltBytes = MinSaltBytes
	}
	if params.MaxConcurrent <= 0 {
		params.MaxConcurrent = runtime.NumCPU()
	}

	return &Hasher{
		iterations: params.Iterations,
		saltBytes:  params.SaltBytes,
		sem:        semaphore.NewWeighted(int64(params.MaxConcurrent)),
	}
}

// Iterations returns the effective iteration count.
func (h *Hasher) Iterations() int {
	return h.iterations
}

// Hash generates a fresh random salt and derives a key from password.
// Both are returned base64 encoded.
func (h *Hasher) Hash(ctx context.Context, password string) (string, string, error) {
	salt := make([]byte, h.saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := h.derive(ctx, []byte(password), salt)
	if err != nil {
		return "", "", err
	}

	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(salt), nil
}

// Verify re-derives a key from password and salt and compares it to hash in constant time.
// Undecodable hash or salt, or a cancelled context, yields false.
func (h *Hasher) Verify(ctx context.Context, password, hash, salt string) bool {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}

	key, err := h.derive(ctx, []byte(password), saltBytes)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(key, expected) == 1
}

func (h *Hasher) derive(ctx context.Context, password, salt []byte) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire kdf slot: %w", err)
	}
	defer h.sem.Release(1)

	return pbkdf2.Key(password, salt, h.iterations, KeyBytes, sha256.New), nil
}
