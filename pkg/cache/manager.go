package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager handles caching operations on top of a Backend.
type Manager struct {
	backend Backend
	logger  zerolog.Logger
}

// NewManager creates a new cache manager.
func NewManager(backend Backend) *Manager {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	return &Manager{
		backend: backend,
		logger:  zerolog.Nop(),
	}
}

// WithLogger sets the logger used for cache diagnostics.
func (m *Manager) WithLogger(logger zerolog.Logger) *Manager {
	m.logger = logger
	return m
}

// Backend returns the underlying backend.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	entry, err := m.backend.Get(ctx, cacheKey)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.WithLabelValues(m.backend.Name()).Inc()
			m.logger.Debug().Str("cache_key", cacheKey).Msg("Cache miss")
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	CacheHits.WithLabelValues(m.backend.Name()).Inc()
	m.logger.Debug().
		Str("cache_key", cacheKey).
		Dur("ttl", entry.TTL()).
		Msg("Cache hit")

	return entry, nil
}

// Set stores data under key for ttl. A non-positive ttl stores nothing.
func (m *Manager) Set(ctx context.Context, key CacheKey, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	cacheKey := key.String()
	if err := m.backend.Set(ctx, cacheKey, NewEntry(cacheKey, data, ttl)); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("cache set: %w", err)
	}

	m.logger.Debug().
		Str("cache_key", cacheKey).
		Dur("ttl", ttl).
		Msg("Cached response")
	return nil
}

// InvalidateEndpoints removes every cached response of the given endpoints
// (all methods and parameters). Sub-resources must be listed explicitly.
func (m *Manager) InvalidateEndpoints(ctx context.Context, endpoints ...string) (int, error) {
	removed := 0
	var errs []error

	for _, endpoint := range endpoints {
		n, err := m.backend.DeletePrefix(ctx, EndpointPrefix(endpoint))
		removed += n
		if err != nil {
			CacheErrors.WithLabelValues("invalidate").Inc()
			errs = append(errs, fmt.Errorf("invalidate %s: %w", endpoint, err))
			continue
		}
		CacheInvalidations.WithLabelValues("endpoint").Inc()
	}

	m.logger.Debug().
		Strs("endpoints", endpoints).
		Int("removed", removed).
		Msg("Invalidated cached endpoints")

	return removed, errors.Join(errs...)
}

// Clear removes every cached response.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.backend.Flush(ctx); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("cache clear: %w", err)
	}

	CacheInvalidations.WithLabelValues("all").Inc()
	m.logger.Debug().Msg("Cleared response cache")
	return nil
}
