package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	// or had already expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a cache backend. Implementations must be safe for concurrent
// use and must treat expired entries as misses.
type Store interface {
	// Get retrieves the entry for key. It returns ErrCacheMiss when the
	// key is absent or expired.
	Get(ctx context.Context, key Key) (*Entry, error)

	// Set stores an entry under key. Entries whose TTL has already
	// elapsed are silently dropped.
	Set(ctx context.Context, key Key, entry *Entry) error

	// Delete removes the entry for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key Key) error

	// Close releases resources held by the store. Stores wrapping
	// injected connections leave them open for their owner to close.
	Close() error
}
