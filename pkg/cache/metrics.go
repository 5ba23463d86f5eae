package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by backend
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyfi_cache_hits_total",
			Help: "Total number of SkyFi response cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by backend
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyfi_cache_misses_total",
			Help: "Total number of SkyFi response cache misses",
		},
		[]string{"backend"},
	)

	// CacheInvalidations tracks invalidations by scope
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyfi_cache_invalidations_total",
			Help: "Total number of cache invalidations triggered by mutating calls",
		},
		[]string{"scope"}, // "endpoint", "all"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyfi_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "invalidate", "clear"
	)
)
