package pagination

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/client"
	"github.com/Sternrassler/skyfi-gateway/pkg/logging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderLister fetches one page of orders. *client.Client implements it.
type OrderLister interface {
	ListOrders(ctx context.Context, filters map[string]any) (*client.OrderList, error)
}

// Config holds session manager configuration.
type Config struct {
	// DefaultLimit applies when a request gives no limit and the session has no page yet
	DefaultLimit int

	// MaxLimit bounds the page size a caller may request
	MaxLimit int

	// PrefetchConcurrency is the maximum number of parallel prefetch requests
	PrefetchConcurrency int

	// PrefetchTimeout per page fetch
	PrefetchTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        20,
		MaxLimit:            100,
		PrefetchConcurrency: 3,
		PrefetchTimeout:     15 * time.Second,
	}
}

// Manager owns order-history sessions.
//
// One mutex guards every read-modify-write of the store. It is released
// while the upstream page is fetched, so slow fetches for one conversation
// do not block others.
type Manager struct {
	lister OrderLister
	store  Store
	config Config
	logger zerolog.Logger

	mu sync.Mutex

	now   func() time.Time
	newID func() string
}

// NewManager creates a session manager. A nil store uses an in-memory store
// without eviction.
func NewManager(lister OrderLister, store Store, config Config) *Manager {
	if lister == nil {
		panic("order lister cannot be nil")
	}
	if store == nil {
		store = NewMemoryStore(0)
	}

	def := DefaultConfig()
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = def.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = def.MaxLimit
	}
	if config.DefaultLimit > config.MaxLimit {
		config.DefaultLimit = config.MaxLimit
	}
	if config.PrefetchConcurrency <= 0 {
		config.PrefetchConcurrency = def.PrefetchConcurrency
	}
	if config.PrefetchTimeout <= 0 {
		config.PrefetchTimeout = def.PrefetchTimeout
	}

	return &Manager{
		lister: lister,
		store:  store,
		config: config,
		logger: logging.NewLogger(logging.ComponentHistory),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// plan is a resolved request: the working session and the page to fetch.
type plan struct {
	session        *Session
	isNew          bool
	filtersChanged bool
	offset         int
	limit          int
}

// ListOrders resolves or creates the session named by req, fetches the
// requested page and returns it with session metadata.
func (m *Manager) ListOrders(ctx context.Context, conversationID string, req Request) (*Result, error) {
	if err := req.validate(m.config.MaxLimit); err != nil {
		return nil, err
	}

	m.mu.Lock()
	p, err := m.resolve(ctx, conversationID, req)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logger := m.logger.With().
		Str("session_id", p.session.ID).
		Str("conversation_id", conversationID).
		Int("offset", p.offset).
		Int("limit", p.limit).
		Logger()

	list, err := m.lister.ListOrders(ctx, queryParams(p.session.Filters, p.limit, p.offset))
	if err != nil {
		logger.Warn().Err(err).Str("error_class", string(client.ClassOf(err))).Msg("Order page fetch failed")
		return nil, err
	}
	historyPageFetches.WithLabelValues(req.navigation()).Inc()

	page := Page{
		Offset:    p.offset,
		Limit:     p.limit,
		Orders:    list.Orders,
		FetchedAt: m.now(),
		HasMore:   len(list.Orders) == p.limit,
		Total:     list.Total,
	}
	if page.Orders == nil {
		page.Orders = []client.OrderSummary{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session := p.session
	if !p.isNew && !p.filtersChanged {
		// Keep pages stored by concurrent turns since the plan was made.
		if current, err := m.store.Get(ctx, session.ID); err == nil && filtersEqual(current.Filters, session.Filters) {
			session = current
		}
	}

	session.storePage(page)
	session.Cursor = &Cursor{Offset: page.Offset, Limit: page.Limit}
	session.UpdatedAt = page.FetchedAt

	if err := m.store.Set(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	if p.isNew {
		historySessionsCreated.Inc()
		logger.Info().Str("filters", SummarizeFilters(session.Filters)).Msg("Order history session created")
	}
	logger.Debug().
		Int("count", len(page.Orders)).
		Int("unique_orders", len(session.UniqueOrderIDs)).
		Msg("Order page stored")

	return buildResult(session, page, req.IncludeHistory), nil
}

// resolve finds or creates the session and computes the target page.
// The caller holds m.mu.
func (m *Manager) resolve(ctx context.Context, conversationID string, req Request) (*plan, error) {
	now := m.now()
	updates := req.updates()

	var (
		session   *Session
		isNew     bool
		changed   bool
		lastLimit int
	)

	switch {
	case req.Reset || (req.SessionID == "" && req.hasFilters()):
		seed := map[string]any{}
		if req.Reset && req.SessionID != "" && !req.hasFilters() {
			prev, err := m.lookup(ctx, conversationID, req.SessionID)
			if err != nil {
				return nil, err
			}
			seed = prev.Filters
		}

		session = newSession(m.newID(), conversationID, now)
		session.Filters = cloneFilters(seed)
		mergeFilters(session.Filters, updates)
		if len(session.Filters) == 0 {
			return nil, client.NewValidationError("a new order history session needs at least one filter", ErrNoFilters)
		}
		session.History = append(session.History, historyEntry(session.Filters, now))
		isNew = true

	case req.SessionID == "":
		return nil, client.NewValidationError("provide a sessionId or at least one filter", ErrNoFilters)

	default:
		prev, err := m.lookup(ctx, conversationID, req.SessionID)
		if err != nil {
			return nil, err
		}
		session = prev
		if session.Cursor != nil {
			lastLimit = session.Cursor.Limit
		}

		merged := cloneFilters(session.Filters)
		mergeFilters(merged, updates)
		if !filtersEqual(merged, session.Filters) {
			session.Filters = merged
			session.History = append(session.History, historyEntry(merged, now))
			session.Pages = []Page{}
			session.Cursor = nil
			changed = true
		}
	}

	// A filter change clears the cursor but keeps the page size.
	limit := req.Limit
	if limit == 0 {
		limit = lastLimit
	}
	if limit == 0 {
		limit = m.config.DefaultLimit
	}

	offset := targetOffset(req, session.Cursor, limit)
	if offset > math.MaxInt-m.config.MaxLimit {
		return nil, client.NewValidationError("no further pages: offset out of range", nil)
	}

	return &plan{
		session:        session,
		isNew:          isNew,
		filtersChanged: changed,
		offset:         offset,
		limit:          limit,
	}, nil
}

// targetOffset applies the navigation precedence: action, page, offset, default.
func targetOffset(req Request, cursor *Cursor, limit int) int {
	switch req.Action {
	case ActionNext:
		if cursor == nil {
			return 0
		}
		return cursor.Offset + cursor.Limit
	case ActionPrevious:
		if cursor == nil {
			return 0
		}
		return max(0, cursor.Offset-limit)
	case ActionFirst:
		return 0
	case ActionCurrent:
		if cursor == nil {
			return 0
		}
		return cursor.Offset
	}

	switch {
	case req.Page != nil:
		return (*req.Page - 1) * limit
	case req.Offset != nil:
		return *req.Offset
	case cursor != nil:
		return cursor.Offset
	default:
		return 0
	}
}

// lookup loads a session and checks it belongs to conversationID.
func (m *Manager) lookup(ctx context.Context, conversationID, sessionID string) (*Session, error) {
	session, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, client.NewNotFoundError(fmt.Sprintf("order history session %s not found", sessionID), ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.ConversationID != conversationID {
		return nil, client.NewNotFoundError(fmt.Sprintf("order history session %s not found in this conversation", sessionID), ErrConversationMismatch)
	}
	return session, nil
}

func historyEntry(filters map[string]any, now time.Time) HistoryEntry {
	return HistoryEntry{
		Timestamp: now,
		Filters:   cloneFilters(filters),
		Summary:   SummarizeFilters(filters),
	}
}

func buildResult(session *Session, page Page, includeHistory bool) *Result {
	index := page.Offset/page.Limit + 1
	info := PageInfo{
		Index:   index,
		Offset:  page.Offset,
		Limit:   page.Limit,
		Count:   len(page.Orders),
		HasMore: page.HasMore,
	}
	if page.HasMore {
		next := page.Offset + page.Limit
		info.NextOffset = &next
	}

	result := &Result{
		Success:   true,
		SessionID: session.ID,
		Orders:    page.Orders,
		Page:      info,
		Filters:   cloneFilters(session.Filters),
		Context: SessionContext{
			CreatedAt:    session.CreatedAt,
			UpdatedAt:    session.UpdatedAt,
			StoredPages:  len(session.Pages),
			UniqueOrders: len(session.UniqueOrderIDs),
		},
		Summary: resultSummary(len(page.Orders), index, len(session.UniqueOrderIDs)),
		Total:   page.Total,
	}
	if includeHistory {
		result.History = append([]HistoryEntry{}, session.History...)
	}
	return result
}

// GetSession returns a copy of the session.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, client.NewNotFoundError(fmt.Sprintf("order history session %s not found", sessionID), ErrSessionNotFound)
	}
	return session, err
}

// GetAllSessionOrders flattens every stored page of the session in offset
// order. Orders that appear on several pages are repeated.
func (m *Manager) GetAllSessionOrders(ctx context.Context, sessionID string) ([]client.OrderSummary, error) {
	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.orders(), nil
}

// GetConversationSessions returns the conversation's sessions, most recently
// updated first.
func (m *Manager) GetConversationSessions(ctx context.Context, conversationID string) ([]*Session, error) {
	sessions, err := m.store.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if sessions == nil {
		sessions = []*Session{}
	}
	return sessions, nil
}

// Reset drops every session.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}
	m.logger.Info().Msg("Order history sessions reset")
	return nil
}
