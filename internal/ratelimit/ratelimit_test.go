package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
	incrErr error
	expired int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Duration),
	}
}

func (s *fakeStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrErr != nil {
		return 0, s.incrErr
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[key] = ttl
	s.expired++
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.counts[key]
	if !ok {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

func newTestLimiter(t *testing.T, store Store, rpm, burst int) *Limiter {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	l := New(store, rpm, burst, log)
	l.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return l
}

func TestAllowWithinLimit(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)

	allowed, remaining := l.Allow(context.Background(), "tenant-a", "chat")

	assert.True(t, allowed)
	assert.Equal(t, 69, remaining)
}

func TestAllowDeniesBeyondBurst(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)
	ctx := context.Background()

	for i := 0; i < 70; i++ {
		allowed, _ := l.Allow(ctx, "tenant-a", "chat")
		require.True(t, allowed, "request %d should be admitted", i+1)
	}

	allowed, remaining := l.Allow(ctx, "tenant-a", "chat")
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
}

func TestAllowSetsExpiryOnceOnFirstHit(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Allow(ctx, "tenant-a", "chat")
	}

	require.Equal(t, 1, store.expired)
	for _, ttl := range store.expires {
		assert.Equal(t, time.Minute, ttl)
	}
}

func TestAllowFailsOpenWhenStoreDown(t *testing.T) {
	store := newFakeStore()
	store.incrErr = errors.New("connection refused")
	l := newTestLimiter(t, store, 60, 10)

	allowed, remaining := l.Allow(context.Background(), "tenant-a", "chat")

	assert.True(t, allowed)
	assert.Equal(t, 60, remaining, "fail-open reports the sustained budget")
	assert.Zero(t, store.expired)
}

func TestAllowIsolatesIdentitiesAndEndpoints(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)
	ctx := context.Background()

	l.Allow(ctx, "tenant-a", "chat")
	l.Allow(ctx, "tenant-a", "search")
	l.Allow(ctx, "tenant-b", "chat")

	_, remaining := l.Allow(ctx, "tenant-a", "chat")
	assert.Equal(t, 68, remaining)
	_, remaining = l.Allow(ctx, "tenant-b", "chat")
	assert.Equal(t, 68, remaining)
}

func TestWindowRolloverResetsCounter(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return base }
	for i := 0; i < 70; i++ {
		l.Allow(ctx, "tenant-a", "chat")
	}
	allowed, _ := l.Allow(ctx, "tenant-a", "chat")
	require.False(t, allowed)

	l.now = func() time.Time { return base.Add(time.Minute) }
	allowed, remaining := l.Allow(ctx, "tenant-a", "chat")

	assert.True(t, allowed)
	assert.Equal(t, 69, remaining)
}

func TestStatusUntouchedWindow(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)

	status := l.Status(context.Background(), "tenant-a", "chat")

	assert.Equal(t, 70, status.Limit)
	assert.Equal(t, 70, status.Remaining)
}

func TestStatusReflectsUsageWithoutConsuming(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Allow(ctx, "tenant-a", "chat")
	}

	status := l.Status(ctx, "tenant-a", "chat")
	assert.Equal(t, 3, status.Used)
	assert.Equal(t, 67, status.Remaining)

	// Reading status again must not change standing.
	status = l.Status(ctx, "tenant-a", "chat")
	assert.Equal(t, 3, status.Used)
	assert.Equal(t, 67, status.Remaining)
}

func TestStatusResetCountdown(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 60, 10)
	l.now = func() time.Time { return time.Date(2023, 11, 14, 22, 13, 45, 0, time.UTC) }

	status := l.Status(context.Background(), "tenant-a", "chat")

	assert.Equal(t, int64(15), status.ResetInSeconds)
}

func TestStatusClampsRemainingAtZero(t *testing.T) {
	store := newFakeStore()
	l := newTestLimiter(t, store, 2, 1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Allow(ctx, "tenant-a", "chat")
	}

	status := l.Status(ctx, "tenant-a", "chat")
	assert.Equal(t, 0, status.Remaining)
}

func TestNewAppliesDefaults(t *testing.T) {
	log, err := logger.New("error")
	require.NoError(t, err)

	l := New(newFakeStore(), 0, -1, log)

	assert.Equal(t, DefaultRPM+DefaultBurst, l.Limit())
}
