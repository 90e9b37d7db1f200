// Package ratelimit implements fixed-window request limiting backed by
// the key-value store.
//
// Counters live in per-minute keys that expire on their own, so there is
// no sweeper and no state to migrate. The limiter fails open: when the
// store is unreachable every request is admitted, since losing Redis
// should degrade throttling, not availability.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/squadnav-ai/conversational-backend/internal/model"
	"github.com/squadnav-ai/conversational-backend/pkg/logger"
	"github.com/squadnav-ai/conversational-backend/pkg/metrics"
)

const (
	// DefaultRPM is the sustained per-minute request budget.
	DefaultRPM = 60

	// DefaultBurst is the extra headroom above the sustained budget.
	DefaultBurst = 10

	// window is the fixed counting window.
	window = 60 * time.Second
)

// Store is the slice of the key-value client the limiter needs.
type Store interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool)
}

// Limiter enforces a fixed-window quota per identity and endpoint.
type Limiter struct {
	store Store
	rpm   int
	burst int
	now   func() time.Time
	log   *logger.Logger
}

// New creates a Limiter. Non-positive rpm and negative burst fall back
// to the defaults.
func New(store Store, rpm, burst int, log *logger.Logger) *Limiter {
	if rpm <= 0 {
		rpm = DefaultRPM
	}
	if burst < 0 {
		burst = DefaultBurst
	}
	return &Limiter{
		store: store,
		rpm:   rpm,
		burst: burst,
		now:   time.Now,
		log:   log,
	}
}

// Limit returns the effective per-window limit including burst headroom.
func (l *Limiter) Limit() int {
	return l.rpm + l.burst
}

// ResetIn returns the seconds until the current window rolls over.
func (l *Limiter) ResetIn() int64 {
	period := int64(window / time.Second)
	return period - l.now().Unix()%period
}

// Allow consumes one unit of quota for identity on endpoint and reports
// whether the request may proceed, along with the remaining quota in the
// current window. When the counter store is unreachable the request is
// admitted and the sustained budget is reported as remaining.
func (l *Limiter) Allow(ctx context.Context, identity, endpoint string) (bool, int) {
	key := l.key(identity, endpoint)

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		metrics.RateLimitDegradedTotal.Inc()
		l.log.Warn("rate limit check failed open",
			zap.String("identity", identity),
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return true, l.rpm
	}

	// First hit in the window owns the expiry. EXPIRE is separate from
	// INCR, so a crash between the two leaves a counter that never
	// expires; the per-minute key suffix keeps that from mattering
	// beyond the current window.
	if count == 1 {
		if err := l.store.Expire(ctx, key, window); err != nil {
			l.log.Warn("failed to set rate limit window expiry",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	limit := l.Limit()
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(limit) {
		metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "limited").Inc()
		return false, remaining
	}
	metrics.RateLimitDecisionsTotal.WithLabelValues(endpoint, "allowed").Inc()
	return true, remaining
}

// Status reports the caller's standing in the current window without
// consuming quota. A missing counter or an unreachable store both read
// as an untouched window.
func (l *Limiter) Status(ctx context.Context, identity, endpoint string) model.RateLimitStatus {
	used := 0
	if v, ok := l.store.Get(ctx, l.key(identity, endpoint)); ok {
		used, _ = strconv.Atoi(v)
	}

	limit := l.Limit()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	return model.RateLimitStatus{
		Limit:          limit,
		Used:           used,
		Remaining:      remaining,
		ResetInSeconds: l.ResetIn(),
	}
}

func (l *Limiter) key(identity, endpoint string) string {
	return fmt.Sprintf("rate:%s:%s:%d", identity, endpoint, l.now().Unix()/60)
}
