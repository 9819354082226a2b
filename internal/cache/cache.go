// Package cache stores upstream responses and composed schemas. Values are
// opaque bytes; callers own the encoding.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Store is a byte cache with a store-wide TTL. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value of key. A missing or expired key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

var ErrEmptyKey = errors.New("cache: empty key")

// Key hashes parts into a key that is safe for every backend (NATS KV keys
// may not contain spaces or most punctuation).
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return namespace + "." + hex.EncodeToString(h.Sum(nil))
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}
