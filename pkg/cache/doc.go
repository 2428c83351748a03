// Package cache provides response caching for the catalogue API client with
// pluggable storage backends.
//
// The cache keeps raw response bodies keyed by request path and normalized
// query parameters, with the following features:
//
// - Content-aware TTL assignment (sparse, pending, harvest and record tiers)
// - Deterministic cache key generation that excludes credential parameters
// - In-memory, SQLite, Redis and no-op storage backends behind one interface
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create a store (in-memory here; SQLite and Redis work the same way)
//	store := cache.NewMemoryStore()
//	defer store.Close()
//
//	// Create a cache key
//	key := cache.Key{
//		Path:   "/result",
//		Params: url.Values{"q": []string{"water"}, "category": []string{"book"}},
//	}
//
//	// Get from cache
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the API
//	}
//
//	// Store a response for ten minutes
//	entry = cache.NewEntry(body, http.StatusOK, 10*time.Minute)
//	if err := store.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # TTL Assignment
//
// Search responses are perishable to different degrees. TTLPolicy inspects a
// response body and picks a tier:
//
//	policy := cache.DefaultTTLPolicy()
//	ttl := policy.For("/result", body, false)
//
// Responses containing records still pending ingestion get the shortest
// TTL, sparse results (very small totals) a short one, bulk harvest pages a
// long one and non-search record lookups the longest.
//
// # Metrics
//
// All backends export Prometheus metrics:
//
//   - catalog_cache_hits_total{backend} - Cache hits
//   - catalog_cache_misses_total{backend} - Cache misses
//   - catalog_cache_errors_total{backend,operation} - Cache operation errors
//   - catalog_cache_evictions_total{backend} - Expired entries removed
//
// # Consistency
//
// Expiry is enforced on read in every backend: an expired entry is treated
// as a miss and removed, so a crashed or paused process can never serve
// stale data after resuming. Backends that persist (SQLite, Redis) also
// purge lazily during writes rather than running background sweepers.
package cache
