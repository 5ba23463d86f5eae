package pagination

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/client"
)

// Page is one fetched slice of the order listing.
type Page struct {
	Offset    int                   `json:"offset"`
	Limit     int                   `json:"limit"`
	Orders    []client.OrderSummary `json:"orders"`
	FetchedAt time.Time             `json:"fetchedAt"`

	// HasMore is true iff the page came back full.
	HasMore bool `json:"hasMore"`

	// Total is the upstream total when reported.
	Total *int `json:"total,omitempty"`
}

// HistoryEntry records an effective filter change.
type HistoryEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Filters   map[string]any `json:"filtersSnapshot"`
	Summary   string         `json:"summary"`
}

// Cursor is the offset and limit of the most recently fetched page.
type Cursor struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// OrderIDSet is the set of order ids seen in a session.
// It serializes as a sorted JSON array.
type OrderIDSet map[string]struct{}

// MarshalJSON implements json.Marshaler.
func (s OrderIDSet) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return json.Marshal(ids)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *OrderIDSet) UnmarshalJSON(b []byte) error {
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	set := make(OrderIDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	*s = set
	return nil
}

// Session is a conversation-scoped cursor over a filtered order listing.
type Session struct {
	ID             string         `json:"sessionId"`
	ConversationID string         `json:"conversationId"`
	Filters        map[string]any `json:"filters"`

	// Pages are sorted by offset, at most one per offset.
	Pages []Page `json:"pages"`

	// UniqueOrderIDs only grows; a filter change clears pages but keeps it.
	UniqueOrderIDs OrderIDSet `json:"uniqueOrderIds"`

	History   []HistoryEntry `json:"history"`
	Cursor    *Cursor        `json:"cursor,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func newSession(id, conversationID string, now time.Time) *Session {
	return &Session{
		ID:             id,
		ConversationID: conversationID,
		Filters:        map[string]any{},
		Pages:          []Page{},
		UniqueOrderIDs: OrderIDSet{},
		History:        []HistoryEntry{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// storePage inserts p in offset order, replacing any page at the same offset,
// and folds its order ids into UniqueOrderIDs.
func (s *Session) storePage(p Page) {
	i := sort.Search(len(s.Pages), func(i int) bool { return s.Pages[i].Offset >= p.Offset })
	switch {
	case i < len(s.Pages) && s.Pages[i].Offset == p.Offset:
		s.Pages[i] = p
	default:
		s.Pages = append(s.Pages, Page{})
		copy(s.Pages[i+1:], s.Pages[i:])
		s.Pages[i] = p
	}

	if s.UniqueOrderIDs == nil {
		s.UniqueOrderIDs = OrderIDSet{}
	}
	for _, o := range p.Orders {
		if o.ID != "" {
			s.UniqueOrderIDs[o.ID] = struct{}{}
		}
	}
}

// pageAt returns the stored page at offset.
func (s *Session) pageAt(offset int) (Page, bool) {
	for _, p := range s.Pages {
		if p.Offset == offset {
			return p, true
		}
	}
	return Page{}, false
}

// orders flattens every stored page in offset order.
func (s *Session) orders() []client.OrderSummary {
	var n int
	for _, p := range s.Pages {
		n += len(p.Orders)
	}
	out := make([]client.OrderSummary, 0, n)
	for _, p := range s.Pages {
		out = append(out, p.Orders...)
	}
	return out
}

// clone returns a deep copy. Order snapshots are immutable and shared.
func (s *Session) clone() *Session {
	c := *s
	c.Filters = cloneFilters(s.Filters)

	c.Pages = make([]Page, len(s.Pages))
	for i, p := range s.Pages {
		p.Orders = append([]client.OrderSummary(nil), p.Orders...)
		c.Pages[i] = p
	}

	c.UniqueOrderIDs = make(OrderIDSet, len(s.UniqueOrderIDs))
	for id := range s.UniqueOrderIDs {
		c.UniqueOrderIDs[id] = struct{}{}
	}

	c.History = make([]HistoryEntry, len(s.History))
	for i, h := range s.History {
		h.Filters = cloneFilters(h.Filters)
		c.History[i] = h
	}

	if s.Cursor != nil {
		cursor := *s.Cursor
		c.Cursor = &cursor
	}
	return &c
}
