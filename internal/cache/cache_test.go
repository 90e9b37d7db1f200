package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	down   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

func (s *fakeStore) Set(_ context.Context, key, value string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return false
	}
	s.values[key] = value
	s.ttls[key] = ttl
	return true
}

func (s *fakeStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return false
	}
	_, ok := s.values[key]
	delete(s.values, key)
	delete(s.ttls, key)
	return ok
}

func newTestCache(t *testing.T, store Store) *Cache {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return New(store, Config{}, log)
}

func sampleMessages() []model.Message {
	return []model.Message{
		{ID: 1, ConversationID: 7, Role: model.RoleUser, Content: "hello", CreatedAt: time.Unix(1_700_000_000, 0).UTC()},
		{ID: 2, ConversationID: 7, Role: model.RoleAssistant, Content: "hi there", CreatedAt: time.Unix(1_700_000_010, 0).UTC()},
	}
}

func TestMessagesRoundTrip(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()

	_, ok := c.GetMessages(ctx, 7)
	require.False(t, ok)

	c.SetMessages(ctx, 7, sampleMessages())

	got, ok := c.GetMessages(ctx, 7)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleAssistant, got[1].Role)
	assert.Equal(t, "hi there", got[1].Content)
}

func TestMessagesKeyAndTTL(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)

	c.SetMessages(context.Background(), 42, sampleMessages())

	require.Contains(t, store.values, "conv:42:messages")
	assert.Equal(t, DefaultConversationTTL, store.ttls["conv:42:messages"])
}

func TestInvalidateMessages(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()

	c.SetMessages(ctx, 7, sampleMessages())
	c.InvalidateMessages(ctx, 7)

	_, ok := c.GetMessages(ctx, 7)
	assert.False(t, ok)
}

func TestCorruptSnapshotDroppedAsMiss(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()

	store.values["conv:7:messages"] = "{not json"

	_, ok := c.GetMessages(ctx, 7)
	assert.False(t, ok)
	assert.NotContains(t, store.values, "conv:7:messages", "corrupt entry should be removed")
}

func TestMessagesMissWhenStoreDown(t *testing.T) {
	store := newFakeStore()
	store.down = true
	c := newTestCache(t, store)

	_, ok := c.GetMessages(context.Background(), 7)
	assert.False(t, ok)
}

func TestLLMResponseRoundTrip(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()

	_, ok := c.GetLLMResponse(ctx, "what is redis", "ctx-a")
	require.False(t, ok)

	c.SetLLMResponse(ctx, "what is redis", "ctx-a", "an in-memory store")

	got, ok := c.GetLLMResponse(ctx, "what is redis", "ctx-a")
	require.True(t, ok)
	assert.Equal(t, "an in-memory store", got)
}

func TestLLMResponseKeyedByPromptAndContext(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()

	c.SetLLMResponse(ctx, "what is redis", "ctx-a", "answer a")

	_, ok := c.GetLLMResponse(ctx, "what is redis", "ctx-b")
	assert.False(t, ok, "different context must not share an entry")

	sum := md5.Sum([]byte("what is redis:ctx-a"))
	wantKey := "llm:response:" + hex.EncodeToString(sum[:])
	assert.Contains(t, store.values, wantKey)
	assert.Equal(t, DefaultLLMTTL, store.ttls[wantKey])
}

func TestMemoizeFillsOnce(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()
	calls := 0

	fill := func(context.Context) (string, error) {
		calls++
		return "expensive result", nil
	}

	val, cached, err := c.Memoize(ctx, "analytics", "use-case-1", 0, fill)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "expensive result", val)

	val, cached, err = c.Memoize(ctx, "analytics", "use-case-1", 0, fill)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "expensive result", val)
	assert.Equal(t, 1, calls)
}

func TestMemoizeErrorNotCached(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)
	ctx := context.Background()
	boom := errors.New("upstream down")
	calls := 0

	fill := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", boom
		}
		return "recovered", nil
	}

	_, _, err := c.Memoize(ctx, "analytics", "use-case-1", 0, fill)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.values)

	val, cached, err := c.Memoize(ctx, "analytics", "use-case-1", 0, fill)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "recovered", val)
}

func TestMemoizeUsesDefaultTTL(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)

	_, _, err := c.Memoize(context.Background(), "analytics", "use-case-1", 0, func(context.Context) (string, error) {
		return "v", nil
	})
	require.NoError(t, err)

	sum := md5.Sum([]byte("analytics:use-case-1"))
	key := "cache:" + hex.EncodeToString(sum[:])
	assert.Equal(t, DefaultMemoTTL, store.ttls[key])
}

func TestMemoizeHonorsExplicitTTL(t *testing.T) {
	store := newFakeStore()
	c := newTestCache(t, store)

	_, _, err := c.Memoize(context.Background(), "analytics", "use-case-1", 30*time.Second, func(context.Context) (string, error) {
		return "v", nil
	})
	require.NoError(t, err)

	sum := md5.Sum([]byte("analytics:use-case-1"))
	key := "cache:" + hex.EncodeToString(sum[:])
	assert.Equal(t, 30*time.Second, store.ttls[key])
}
