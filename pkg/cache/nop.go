package cache

import "context"

// NopStore is a Store that caches nothing. Every Get is a miss and every
// Set is discarded. Use it to disable caching without branching in the
// client.
type NopStore struct{}

// NewNopStore creates a store that never caches.
func NewNopStore() NopStore {
	return NopStore{}
}

// Get always returns ErrCacheMiss.
func (NopStore) Get(context.Context, Key) (*Entry, error) {
	return nil, ErrCacheMiss
}

// Set discards the entry.
func (NopStore) Set(context.Context, Key, *Entry) error {
	return nil
}

// Delete does nothing.
func (NopStore) Delete(context.Context, Key) error {
	return nil
}

// Close does nothing.
func (NopStore) Close() error {
	return nil
}
