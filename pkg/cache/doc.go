// Package cache provides the SkyFi response cache used by the API client.
//
// The cache manager implements per-endpoint TTL caching with the following features:
//
// - Deterministic cache keys built from method, endpoint, sorted query and body digest
// - Per-operation TTLs (see TTLVolatile, TTLOrders, TTLArchive, TTLWebhooks)
// - Explicit invalidation by endpoint, or wholesale
// - Pluggable backends: in-process map or Redis
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	manager := cache.NewManager(cache.NewMemoryBackend())
//
//	key := cache.CacheKey{
//		Method:   "GET",
//		Endpoint: "orders",
//		Query:    url.Values{"status": []string{"completed"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from SkyFi, then
//		_ = manager.Set(ctx, key, payload, cache.TTLOrders)
//	}
//
// # Invalidation
//
// Mutating calls drop the affected keys. The prefix for an endpoint covers
// every method and parameter combination of exactly that endpoint:
//
//	// AOI update: the AOI itself plus the AOI listing
//	manager.InvalidateEndpoints(ctx, "aois/"+id, "aois")
//
//	// Order creation: everything
//	manager.Clear(ctx)
//
// # Shared Cache
//
// With NewRedisBackend several processes share cached responses; prefix
// invalidation uses SCAN so it never blocks Redis. Flush only removes keys
// in the skyfi:cache namespace.
//
// # Metrics
//
//   - skyfi_cache_hits_total{backend} - Cache hits
//   - skyfi_cache_misses_total{backend} - Cache misses
//   - skyfi_cache_invalidations_total{scope} - Invalidations by scope
//   - skyfi_cache_errors_total{operation} - Cache operation errors
package cache
