package pagination

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/client"
	"golang.org/x/sync/errgroup"
)

// MaxPrefetchPages bounds the pages one Prefetch call may fetch.
const MaxPrefetchPages = 10

// Prefetch fetches up to pages pages after the session's last fetched page in
// parallel and stores every non-empty one. The cursor does not move. Fetches
// use the same parameters as navigation, so a later "next" is usually served
// from the client's response cache.
//
// The session must belong to conversationID. Offsets already stored are
// skipped. On error the pages fetched so far are still stored and the error
// reports how many succeeded. It returns the number of pages stored.
func (m *Manager) Prefetch(ctx context.Context, conversationID, sessionID string, pages int) (int, error) {
	if pages < 1 || pages > MaxPrefetchPages {
		return 0, client.NewValidationError(fmt.Sprintf("pages must be between 1 and %d (got %d)", MaxPrefetchPages, pages), nil)
	}

	start := time.Now()

	m.mu.Lock()
	session, err := m.lookup(ctx, conversationID, sessionID)
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if session.Cursor == nil {
		return 0, client.NewValidationError("session has no fetched page to prefetch from", nil)
	}

	limit := session.Cursor.Limit
	var offsets []int
	for k := 1; k <= pages; k++ {
		if session.Cursor.Offset > math.MaxInt-k*limit {
			break
		}
		offset := session.Cursor.Offset + k*limit
		if _, ok := session.pageAt(offset); !ok {
			offsets = append(offsets, offset)
		}
	}
	if len(offsets) == 0 {
		return 0, nil
	}

	logger := m.logger.With().
		Str("session_id", sessionID).
		Int("limit", limit).
		Int("pages", len(offsets)).
		Logger()
	logger.Debug().Msg("Starting order page prefetch")

	// Each goroutine owns one slot; no further locking needed.
	fetched := make([]*Page, len(offsets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.PrefetchConcurrency)
	for i, offset := range offsets {
		g.Go(func() error {
			pageCtx, cancel := context.WithTimeout(gctx, m.config.PrefetchTimeout)
			defer cancel()

			list, err := m.lister.ListOrders(pageCtx, queryParams(session.Filters, limit, offset))
			if err != nil {
				return fmt.Errorf("prefetch offset %d: %w", offset, err)
			}
			historyPageFetches.WithLabelValues("prefetch").Inc()

			fetched[i] = &Page{
				Offset:    offset,
				Limit:     limit,
				Orders:    list.Orders,
				FetchedAt: m.now(),
				HasMore:   len(list.Orders) == limit,
				Total:     list.Total,
			}
			return nil
		})
	}
	fetchErr := g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	if !filtersEqual(current.Filters, session.Filters) {
		logger.Debug().Msg("Filters changed during prefetch, discarding pages")
		return 0, fetchErr
	}

	stored := 0
	for _, p := range fetched {
		if p == nil || len(p.Orders) == 0 {
			continue
		}
		current.storePage(*p)
		stored++
	}
	if stored > 0 {
		current.UpdatedAt = m.now()
		if err := m.store.Set(ctx, current); err != nil {
			return 0, fmt.Errorf("store session: %w", err)
		}
	}

	if fetchErr != nil {
		logger.Warn().
			Err(fetchErr).
			Int("stored_pages", stored).
			Msg("Prefetch error - keeping partial results")
		return stored, fmt.Errorf("prefetch (partial data: %d/%d pages): %w", stored, len(offsets), fetchErr)
	}

	logger.Debug().
		Int("stored_pages", stored).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")
	return stored, nil
}
