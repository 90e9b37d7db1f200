package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadnav-ai/conversational-backend/internal/ratelimit"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
)

type fakeCounterStore struct {
	counts  map[string]int64
	incrErr error
}

func newFakeCounterStore() *fakeCounterStore {
	return &fakeCounterStore{counts: map[string]int64{}}
}

func (f *fakeCounterStore) Incr(ctx context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (f *fakeCounterStore) Get(ctx context.Context, key string) (string, bool) {
	return "", false
}

func newTestLimiter(t *testing.T, store ratelimit.Store, rpm, burst int) *ratelimit.Limiter {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return ratelimit.New(store, rpm, burst, log)
}

func TestRateLimitAllowsAndSetsHeaders(t *testing.T) {
	limiter := newTestLimiter(t, newFakeCounterStore(), 60, 10)
	handler := RateLimit(limiter, "api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "70", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "69", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitDeniesWith429(t *testing.T) {
	limiter := newTestLimiter(t, newFakeCounterStore(), 1, 0)
	handler := RateLimit(limiter, "api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimitFailsOpenWhenStoreDown(t *testing.T) {
	store := newFakeCounterStore()
	store.incrErr = errors.New("connection refused")
	limiter := newTestLimiter(t, store, 60, 10)

	handler := RateLimit(limiter, "api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestIdentityPrefersUserThenTenant(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.9:1234"

	assert.Equal(t, "ip:10.0.0.9:1234", Identity(r))

	ctx := context.WithValue(r.Context(), TenantIDKey, "tenant-a")
	assert.Equal(t, "tenant:tenant-a", Identity(r.WithContext(ctx)))

	ctx = context.WithValue(ctx, UserIDKey, "user-1")
	assert.Equal(t, "user:user-1", Identity(r.WithContext(ctx)))
}

func TestRateLimitSeparatesIdentities(t *testing.T) {
	limiter := newTestLimiter(t, newFakeCounterStore(), 1, 0)
	handler := RateLimit(limiter, "api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first = first.WithContext(context.WithValue(first.Context(), UserIDKey, "user-1"))

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second = second.WithContext(context.WithValue(second.Context(), UserIDKey, "user-2"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	require.Equal(t, http.StatusTooManyRequests, w.Code, "user-1 exhausted")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	assert.Equal(t, http.StatusOK, w.Code, "user-2 has its own window")
}
