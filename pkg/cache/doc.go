// Package cache provides a Redis-backed cache for SuiteTalk REST responses.
//
// Only signed GET requests marked cacheable by the caller are cached. Keys are
// scoped to the account so responses are never shared between accounts.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, logger)
//
//	key := cache.CacheKey{
//		Account: "1234567",
//		Path:    "/services/rest/record/v1/customer",
//		Query:   url.Values{"limit": {"100"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from SuiteTalk, then:
//		if entry := cache.ResponseToEntry(status, header, body, ttl); entry != nil {
//			manager.Set(ctx, key, entry)
//		}
//	}
//
// # Freshness
//
// ResponseToEntry honors Cache-Control no-store, no-cache and max-age, then
// Expires, and falls back to the configured TTL. Only 200 responses are
// cached. A successful write through the client calls Invalidate, which
// removes every cached variant of the written path.
//
// # Metrics
//
//   - suitetalk_cache_hits_total
//   - suitetalk_cache_misses_total
//   - suitetalk_cache_stored_bytes_total
//   - suitetalk_cache_invalidations_total
//   - suitetalk_cache_errors_total{operation}
//
// Cache errors are never fatal to a request; the client logs them and calls
// SuiteTalk directly.
package cache
