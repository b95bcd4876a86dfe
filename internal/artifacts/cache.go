// Package artifacts caches compiled documents keyed by a digest of their
// inputs.
package artifacts

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"
)

// DefaultCapacity bounds the in-memory cache.
const DefaultCapacity = 128

// Cache stores compiled artifacts. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Key digests parts into a hex blake2b-256 key. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...[]byte) string {
	h, _ := blake2b.New256(nil)
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a process-local bounded LRU.
type MemoryCache struct {
	lru *lru.Cache[string, []byte]
}

// NewMemoryCache creates a cache holding at most capacity artifacts.
func NewMemoryCache(capacity int) (*MemoryCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact cache: %w", err)
	}
	return &MemoryCache{lru: c}, nil
}

// Get implements Cache.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

// Set implements Cache.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

// Len returns the number of cached artifacts.
func (m *MemoryCache) Len() int { return m.lru.Len() }
