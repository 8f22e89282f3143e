// Package password derives and verifies password hashes.
//
// Encoded form: "argon2id$<base64 salt>$<base64 key>". Cost parameters are
// package constants and never come from input.
package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/unicode/norm"
)

const (
	Tag = "argon2id"

	SaltLength = 16
	KeyLength  = 64

	argonTime    = 2
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4

	// MinLength is enforced by registration and updates, not by Verify.
	MinLength = 8

	// maxKeyLength bounds the work a corrupted stored hash can request.
	maxKeyLength = 1024
)

type Hasher struct {
	gate *semaphore.Weighted
	log  *zap.Logger
}

// NewHasher caps concurrent derivations at workers. debugLog receives the
// reason for each failed verification and may be a no-op logger.
func NewHasher(workers int, debugLog *zap.Logger) *Hasher {
	if workers < 1 {
		workers = 1
	}
	if debugLog == nil {
		debugLog = zap.NewNop()
	}
	return &Hasher{gate: semaphore.NewWeighted(int64(workers)), log: debugLog}
}

// Normalize applies NFKC and trims surrounding whitespace.
func Normalize(password string) string {
	return strings.TrimSpace(norm.NFKC.String(password))
}

func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key, err := h.derive(ctx, Normalize(password), salt, KeyLength)
	if err != nil {
		return "", err
	}

	return Tag + "$" +
		base64.StdEncoding.EncodeToString(salt) + "$" +
		base64.StdEncoding.EncodeToString(key), nil
}

// Verify reports whether password matches encoded. Malformed input, unknown
// tags and mismatches all return (false, nil). A non-nil error only means the
// context ended while waiting for a worker.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	salt, expected, ok := Parse(encoded)
	if !ok {
		h.log.Debug("bad hash format", zap.Int("parts", strings.Count(encoded, "$")+1))
		return false, nil
	}

	actual, err := h.derive(ctx, Normalize(password), salt, len(expected))
	if err != nil {
		return false, err
	}

	if subtle.ConstantTimeCompare(actual, expected) != 1 {
		h.log.Debug("hash mismatch", zap.Int("key_len", len(expected)))
		return false, nil
	}
	return true, nil
}

// Parse splits an encoded hash into salt and key. It rejects unknown tags
// before any decoding work, and any salt that is not SaltLength bytes.
func Parse(encoded string) (salt, key []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != Tag {
		return nil, nil, false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(salt) != SaltLength {
		return nil, nil, false
	}
	key, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(key) == 0 || len(key) > maxKeyLength {
		return nil, nil, false
	}
	return salt, key, true
}

func (h *Hasher) derive(ctx context.Context, password string, salt []byte, keyLen int) ([]byte, error) {
	if err := h.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for kdf worker: %w", err)
	}
	defer h.gate.Release(1)

	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, uint32(keyLen)), nil
}
