package pagination

import (
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/client"
)

// Action is a relative navigation step.
type Action string

const (
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionFirst    Action = "first"
	ActionCurrent  Action = "current"
)

// Request is one order-history call.
type Request struct {
	SessionID string `json:"sessionId,omitempty"`

	// Navigation; Action wins over Page, Page over Offset.
	Action Action `json:"action,omitempty"`
	Page   *int   `json:"page,omitempty"`
	Offset *int   `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`

	// Reset starts a new session. With a SessionID and no filters the new
	// session inherits the old session's filters.
	Reset bool `json:"reset,omitempty"`

	// Direct filters. Typed fields win over the same key in Filters.
	Status    string         `json:"status,omitempty"`
	StartDate string         `json:"startDate,omitempty"`
	EndDate   string         `json:"endDate,omitempty"`
	Satellite string         `json:"satellite,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`

	// Refinements are merged after direct filters. An empty value removes a key.
	Refinements map[string]any `json:"refinements,omitempty"`

	IncludeHistory bool `json:"includeHistory,omitempty"`
}

// updates returns every filter change the request carries, in merge order.
func (r Request) updates() map[string]any {
	out := make(map[string]any)
	for k, v := range r.Filters {
		out[k] = v
	}
	for k, v := range map[string]string{
		FilterStatus:    r.Status,
		FilterStartDate: r.StartDate,
		FilterEndDate:   r.EndDate,
		FilterSatellite: r.Satellite,
	} {
		if v != "" {
			out[k] = v
		}
	}
	for k, v := range r.Refinements {
		out[k] = v
	}
	return out
}

// hasFilters reports whether the request carries at least one non-empty filter.
func (r Request) hasFilters() bool {
	for k, v := range r.updates() {
		if !navigationKeys[k] && !isEmptyValue(v) {
			return true
		}
	}
	return false
}

// navigation names the navigation input for logs and metrics.
func (r Request) navigation() string {
	switch {
	case r.Action != "":
		return string(r.Action)
	case r.Page != nil:
		return "page"
	case r.Offset != nil:
		return "offset"
	default:
		return "default"
	}
}

// validate checks navigation input against the configured limits.
func (r Request) validate(maxLimit int) error {
	switch r.Action {
	case "", ActionNext, ActionPrevious, ActionFirst, ActionCurrent:
	default:
		return client.NewValidationError(fmt.Sprintf("unknown action %q (want next, previous, first or current)", r.Action), nil)
	}
	if r.Limit < 0 || r.Limit > maxLimit {
		return client.NewValidationError(fmt.Sprintf("limit must be between 1 and %d (got %d)", maxLimit, r.Limit), nil)
	}

	// Any resolved limit is at most maxLimit, so these bounds keep
	// offset+limit within int.
	maxOffset := math.MaxInt - maxLimit
	if r.Page != nil && (*r.Page < 1 || *r.Page-1 > maxOffset/maxLimit) {
		return client.NewValidationError(fmt.Sprintf("page must be between 1 and %d (got %d)", maxOffset/maxLimit+1, *r.Page), nil)
	}
	if r.Offset != nil && (*r.Offset < 0 || *r.Offset > maxOffset) {
		return client.NewValidationError(fmt.Sprintf("offset must be between 0 and %d (got %d)", maxOffset, *r.Offset), nil)
	}
	return nil
}

// PageInfo describes the returned page.
type PageInfo struct {
	// Index is 1-based: offset / limit + 1.
	Index      int  `json:"index"`
	Offset     int  `json:"offset"`
	Limit      int  `json:"limit"`
	Count      int  `json:"count"`
	HasMore    bool `json:"hasMore"`
	NextOffset *int `json:"nextOffset,omitempty"`
}

// SessionContext summarizes session state after the call.
type SessionContext struct {
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	StoredPages  int       `json:"storedPages"`
	UniqueOrders int       `json:"uniqueOrders"`
}

// Result is returned by Manager.ListOrders.
type Result struct {
	Success   bool                  `json:"success"`
	SessionID string                `json:"sessionId"`
	Orders    []client.OrderSummary `json:"orders"`
	Page      PageInfo              `json:"page"`
	Filters   map[string]any        `json:"filters"`
	Context   SessionContext        `json:"context"`
	Summary   string                `json:"summary"`
	History   []HistoryEntry        `json:"history,omitempty"`
	Total     *int                  `json:"total,omitempty"`
}
