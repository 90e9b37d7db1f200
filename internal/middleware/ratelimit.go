package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/squadnav-ai/conversational-backend/internal/ratelimit"
)

// Throttle creates the outer per-IP rate limiting middleware. This is a
// blunt in-process guard against floods; the identity-aware quota lives
// in RateLimit.
func Throttle(requestLimit int, windowLength time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestLimit,
		windowLength,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after":60}`))
		}),
	)
}

// RateLimit creates per-identity rate limiting middleware backed by the
// shared counter store. Identity is the authenticated user, falling back
// to the tenant, falling back to the client address. Every response
// carries the window headers; denials get a 429 JSON body.
func RateLimit(limiter *ratelimit.Limiter, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := Identity(r)

			allowed, remaining := limiter.Allow(r.Context(), identity, endpoint)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(limiter.ResetIn(), 10))

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.FormatInt(limiter.ResetIn(), 10))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Identity resolves the rate limiting identity for a request: user id,
// then tenant id, then client address.
func Identity(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	if tenantID := GetTenantID(r.Context()); tenantID != "" {
		return "tenant:" + tenantID
	}
	return "ip:" + r.RemoteAddr
}
