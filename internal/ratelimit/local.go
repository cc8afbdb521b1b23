package ratelimit

import (
	"sync"
	"time"

	"github.com/smallbiznis/carepoints/internal/cache"
	"golang.org/x/time/rate"
)

const localLimiterIdleTTL = 10 * time.Minute

// LocalLimiter keeps one in-process token bucket per key.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters cache.Cache[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func NewLocalLimiter(perSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		limiters: cache.NewTTLCache[string, *rate.Limiter](),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *LocalLimiter) Allow(key string) Result {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
	}
	l.limiters.Set(key, limiter, localLimiterIdleTTL)
	l.mu.Unlock()

	now := time.Now()
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Allowed: false, Limit: l.burst}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Result{Allowed: false, Limit: l.burst, RetryAfter: delay}
	}
	return Result{Allowed: true, Limit: l.burst, Remaining: int(limiter.TokensAt(now))}
}
