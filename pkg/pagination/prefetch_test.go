package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Sternrassler/skyfi-gateway/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingLister fails for one offset and delegates the rest.
type failingLister struct {
	*fakeLister
	failOffset int
}

func (f *failingLister) ListOrders(ctx context.Context, filters map[string]any) (*client.OrderList, error) {
	if filters["offset"].(int) == f.failOffset {
		return nil, &client.APIError{Class: client.ClassServerError, StatusCode: 502, Message: "bad gateway"}
	}
	return f.fakeLister.ListOrders(ctx, filters)
}

func TestPrefetch_StoresPagesWithoutMovingCursor(t *testing.T) {
	lister := &fakeLister{total: 100}
	m := newTestManager(t, lister)
	ctx := context.Background()

	first, err := m.ListOrders(ctx, testConversation, Request{Status: "completed", Limit: 10})
	require.NoError(t, err)

	stored, err := m.Prefetch(ctx, testConversation, first.SessionID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, stored)

	session, err := m.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, session.Pages, 4)
	assert.Len(t, session.UniqueOrderIDs, 40)
	require.NotNil(t, session.Cursor)
	assert.Equal(t, Cursor{Offset: 0, Limit: 10}, *session.Cursor)

	// Next continues from the cursor and replaces the prefetched page
	next, err := m.ListOrders(ctx, testConversation, Request{SessionID: first.SessionID, Action: ActionNext})
	require.NoError(t, err)
	assert.Equal(t, 10, next.Page.Offset)
	assert.Equal(t, 4, next.Context.StoredPages)
}

func TestPrefetch_SkipsStoredOffsetsAndEmptyPages(t *testing.T) {
	lister := &fakeLister{total: 25}
	m := newTestManager(t, lister)
	ctx := context.Background()

	first, err := m.ListOrders(ctx, testConversation, Request{Status: "completed", Limit: 10})
	require.NoError(t, err)
	_, err = m.ListOrders(ctx, testConversation, Request{SessionID: first.SessionID, Offset: intPtr(10)})
	require.NoError(t, err)
	_, err = m.ListOrders(ctx, testConversation, Request{SessionID: first.SessionID, Action: ActionFirst})
	require.NoError(t, err)
	calls := lister.callCount()

	// Offset 10 is stored, 20 has five orders, 30 is empty
	stored, err := m.Prefetch(ctx, testConversation, first.SessionID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Equal(t, calls+2, lister.callCount())

	session, err := m.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, session.Pages, 3)
	assert.Len(t, session.UniqueOrderIDs, 25)
}

func TestPrefetch_PartialFailure(t *testing.T) {
	lister := &failingLister{fakeLister: &fakeLister{total: 100}, failOffset: 20}
	m := newTestManager(t, lister)
	m.config.PrefetchConcurrency = 1
	ctx := context.Background()

	first, err := m.ListOrders(ctx, testConversation, Request{Status: "completed", Limit: 10})
	require.NoError(t, err)

	stored, err := m.Prefetch(ctx, testConversation, first.SessionID, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial data")
	assert.True(t, client.IsClass(err, client.ClassServerError))

	session, getErr := m.GetSession(ctx, first.SessionID)
	require.NoError(t, getErr)
	assert.Equal(t, stored+1, len(session.Pages))
	_, ok := session.pageAt(20)
	assert.False(t, ok)
	_, ok = session.pageAt(10)
	assert.True(t, ok, "pages fetched before the failure are kept")
}

func TestPrefetch_Validation(t *testing.T) {
	m := newTestManager(t, &fakeLister{total: 10})
	ctx := context.Background()

	_, err := m.Prefetch(ctx, testConversation, "any", 0)
	assert.True(t, client.IsClass(err, client.ClassValidation))

	_, err = m.Prefetch(ctx, testConversation, "any", MaxPrefetchPages+1)
	assert.True(t, client.IsClass(err, client.ClassValidation))

	_, err = m.Prefetch(ctx, testConversation, "missing", 2)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestPrefetch_OtherConversation(t *testing.T) {
	lister := &fakeLister{total: 100}
	m := newTestManager(t, lister)
	ctx := context.Background()

	first, err := m.ListOrders(ctx, testConversation, Request{Status: "completed", Limit: 10})
	require.NoError(t, err)
	calls := lister.callCount()

	stored, err := m.Prefetch(ctx, "conv-other", first.SessionID, 2)
	assert.ErrorIs(t, err, ErrConversationMismatch)
	assert.True(t, client.IsClass(err, client.ClassNotFound))
	assert.Equal(t, 0, stored)
	assert.Equal(t, calls, lister.callCount())

	session, err := m.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, session.Pages, 1)
}

func TestPrefetch_FullWindowAlreadyStored(t *testing.T) {
	lister := &fakeLister{total: 100}
	m := newTestManager(t, lister)
	ctx := context.Background()

	first, err := m.ListOrders(ctx, testConversation, Request{Status: "completed", Limit: 10})
	require.NoError(t, err)
	_, err = m.Prefetch(ctx, testConversation, first.SessionID, 2)
	require.NoError(t, err)
	calls := lister.callCount()

	stored, err := m.Prefetch(ctx, testConversation, first.SessionID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
	assert.Equal(t, calls, lister.callCount(), fmt.Sprintf("no upstream calls expected, got %d", lister.callCount()-calls))
}
