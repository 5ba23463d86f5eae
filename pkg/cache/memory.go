package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryBackend is an in-process Backend guarded by a single lock over the
// whole map. Expired entries are dropped lazily on read.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]*CacheEntry),
	}
}

// Name implements Backend.
func (b *MemoryBackend) Name() string {
	return "memory"
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) (*CacheEntry, error) {
	b.mu.RLock()
	entry, ok := b.entries[key]
	b.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}

	if entry.IsExpired() {
		b.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if current, ok := b.entries[key]; ok && current.IsExpired() {
			delete(b.entries, key)
		}
		b.mu.Unlock()
		return nil, ErrCacheMiss
	}

	copied := *entry
	return &copied, nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key string, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	copied := *entry
	b.mu.Lock()
	b.entries[key] = &copied
	b.mu.Unlock()
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		delete(b.entries, key)
	}
	return nil
}

// DeletePrefix implements Backend.
func (b *MemoryBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key := range b.entries {
		if strings.HasPrefix(key, prefix) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Flush implements Backend.
func (b *MemoryBackend) Flush(_ context.Context) error {
	b.mu.Lock()
	b.entries = make(map[string]*CacheEntry)
	b.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet dropped.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
