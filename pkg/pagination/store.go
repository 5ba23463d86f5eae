package pagination

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrSessionNotFound indicates the session id is unknown or was evicted.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoFilters indicates a new session was requested without any filter.
	ErrNoFilters = errors.New("no filters supplied")

	// ErrConversationMismatch indicates the session belongs to another conversation.
	ErrConversationMismatch = errors.New("session belongs to another conversation")
)

// Store holds sessions. Implementations return copies: mutating a returned
// session does not change the stored one until Set is called.
type Store interface {
	// Get returns ErrSessionNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Session, error)
	Set(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	ListByConversation(ctx context.Context, conversationID string) ([]*Session, error)
	Clear(ctx context.Context) error
}

type memoryItem struct {
	session   *Session
	touchedAt time.Time
}

// MemoryStore is a mutex-guarded in-process Store. Sessions idle for longer
// than the TTL are evicted lazily; a zero TTL keeps them until Clear.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates an in-memory store with idle TTL ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) expired(item memoryItem, now time.Time) bool {
	return s.ttl > 0 && now.Sub(item.touchedAt) > s.ttl
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	now := s.now()

	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(item, now) {
		s.mu.Lock()
		if current, ok := s.items[id]; ok && s.expired(current, now) {
			delete(s.items, id)
		}
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return item.session.clone(), nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[session.ID] = memoryItem{session: session.clone(), touchedAt: s.now()}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// ListByConversation implements Store.
func (s *MemoryStore) ListByConversation(_ context.Context, conversationID string) ([]*Session, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Session
	for _, item := range s.items {
		if item.session.ConversationID != conversationID || s.expired(item, now) {
			continue
		}
		out = append(out, item.session.clone())
	}
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]memoryItem)
	return nil
}

// Prune evicts every expired session and returns how many were removed.
func (s *MemoryStore) Prune() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, item := range s.items {
		if s.expired(item, now) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
