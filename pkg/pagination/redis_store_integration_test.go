//go:build integration

package pagination

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())

	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	store := NewRedisStore(rdb, time.Hour)

	s := testSession("s1", "c1")
	require.NoError(t, store.Set(ctx, s))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ConversationID)
	assert.Len(t, got.Pages, 1)
	assert.Len(t, got.UniqueOrderIDs, 2)

	ttl, err := rdb.TTL(ctx, sessionKey("s1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_ListByConversationPrunesExpired(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	store := NewRedisStore(rdb, time.Hour)

	require.NoError(t, store.Set(ctx, testSession("s1", "c1")))
	require.NoError(t, store.Set(ctx, testSession("s2", "c1")))
	require.NoError(t, store.Set(ctx, testSession("s3", "c2")))

	// Simulate expiry of s2's document
	require.NoError(t, rdb.Del(ctx, sessionKey("s2")).Err())

	sessions, err := store.ListByConversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)

	members, err := rdb.SMembers(ctx, conversationKey("c1")).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, members)
}

func TestRedisStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	store := NewRedisStore(rdb, time.Hour)

	require.NoError(t, store.Set(ctx, testSession("s1", "c1")))
	require.NoError(t, store.Set(ctx, testSession("s2", "c1")))
	require.NoError(t, rdb.Set(ctx, "skyfi:cache:orders:GET", "keep", 0).Err())

	require.NoError(t, store.Delete(ctx, "s1"))
	require.NoError(t, store.Delete(ctx, "s1"), "deleting twice is not an error")

	sessions, err := store.ListByConversation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Get(ctx, "s2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	exists, err := rdb.Exists(ctx, "skyfi:cache:orders:GET").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "clear leaves cache keys alone")
}

func TestManager_WithRedisStore(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	lister := &fakeLister{total: 50}

	// Two managers sharing one store behave like two gateway instances.
	a := NewManager(lister, NewRedisStore(rdb, time.Hour), DefaultConfig())
	b := NewManager(lister, NewRedisStore(rdb, time.Hour), DefaultConfig())

	first, err := a.ListOrders(ctx, testConversation, Request{Status: "completed", Limit: 10})
	require.NoError(t, err)

	next, err := b.ListOrders(ctx, testConversation, Request{SessionID: first.SessionID, Action: ActionNext})
	require.NoError(t, err)
	assert.Equal(t, 10, next.Page.Offset)
	assert.Equal(t, 2, next.Context.StoredPages)

	sessions, err := a.GetConversationSessions(ctx, testConversation)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].UniqueOrderIDs, 20)
}
