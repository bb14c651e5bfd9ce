// internal/memory/memory_test.go
package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-search-api/internal/models"
)

func TestInMemoryStore_MissingSessionLoadsEmpty(t *testing.T) {
	store := NewInMemoryStore()

	cc, err := store.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	require.NotNil(t, cc)
	assert.Empty(t, cc.History)
}

func TestInMemoryStore_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	saved := &models.ConversationContext{}
	saved.Append("how many students are there?", "Total number of students: 42")
	require.NoError(t, store.Save(ctx, "sess-1", saved))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "how many students are there?", loaded.History[0].User)
	assert.Equal(t, "Total number of students: 42", loaded.History[0].Bot)
}

func TestInMemoryStore_LoadReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	saved := &models.ConversationContext{}
	saved.Append("q1", "a1")
	require.NoError(t, store.Save(ctx, "sess-1", saved))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	loaded.History[0].Bot = "mutated"
	loaded.Append("q2", "a2")

	again, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, again.History, 1)
	assert.Equal(t, "a1", again.History[0].Bot)
}

func TestInMemoryStore_LastWriterWins(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	first := &models.ConversationContext{}
	first.Append("first question", "first answer")
	require.NoError(t, store.Save(ctx, "sess-1", first))

	second := &models.ConversationContext{}
	second.Append("second question", "second answer")
	require.NoError(t, store.Save(ctx, "sess-1", second))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "second question", loaded.History[0].User)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	saved := &models.ConversationContext{}
	saved.Append("exports of Global Spices", "Found 3 shipments.")
	require.NoError(t, store.Save(ctx, "sess-7", saved))

	loaded, err := store.Load(ctx, "sess-7")
	require.NoError(t, err)
	require.Len(t, loaded.History, 1)
	assert.Equal(t, "exports of Global Spices", loaded.History[0].User)
	assert.Equal(t, "Found 3 shipments.", loaded.History[0].Bot)
}

func TestRedisStore_MissingKeyLoadsEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour)

	cc, err := store.Load(context.Background(), "absent")
	require.NoError(t, err)
	require.NotNil(t, cc)
	assert.Empty(t, cc.History)
}

func TestRedisStore_CorruptValueLoadsEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, 0)

	require.NoError(t, mr.Set(sessionKeyPrefix+"sess-9", "{not json"))

	cc, err := store.Load(context.Background(), "sess-9")
	require.NoError(t, err)
	assert.Empty(t, cc.History)
}

func TestRedisStore_SaveSetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, 30*time.Minute)

	require.NoError(t, store.Save(context.Background(), "sess-ttl", &models.ConversationContext{}))
	assert.Equal(t, 30*time.Minute, mr.TTL(sessionKeyPrefix+"sess-ttl"))
}

func TestRedisStore_SaveErrorSurfaced(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, time.Hour)

	mock.ExpectSet(sessionKeyPrefix+"sess-1", []byte(`{"history":null}`), time.Hour).
		SetErr(redis.ErrClosed)

	err := store.Save(context.Background(), "sess-1", &models.ConversationContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save session sess-1")
}
