package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/carepoints/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyUserEndpoint = "carepoints:ratelimit:user:%s:%s"

type Decision struct {
	Result
	// Source is "redis" or "local".
	Source string
}

type UserLimiterParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Bucket *TokenBucket `optional:"true"`
}

// UserLimiter throttles mutations per user and endpoint. It uses the shared
// Redis bucket when available and falls back to an in-process bucket when
// Redis is absent or failing.
type UserLimiter struct {
	log        *zap.Logger
	enabled    bool
	bucket     *TokenBucket
	local      *LocalLimiter
	rate       float64
	burst      int
	retryAfter time.Duration
}

func NewUserLimiter(p UserLimiterParams) *UserLimiter {
	cfg := p.Config.RateLimit
	rate := cfg.UserRate
	if rate <= 0 {
		rate = 2
	}
	burst := cfg.UserBurst
	if burst <= 0 {
		burst = 10
	}
	bucket := p.Bucket
	if cfg.LocalOnly {
		bucket = nil
	}
	return &UserLimiter{
		log:        p.Log.Named("ratelimit.user"),
		enabled:    cfg.Enabled,
		bucket:     bucket,
		local:      NewLocalLimiter(rate, burst),
		rate:       rate,
		burst:      burst,
		retryAfter: time.Duration(cfg.RetryAfter) * time.Second,
	}
}

func (l *UserLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *UserLimiter) Allow(ctx context.Context, userID, endpoint string) Decision {
	if !l.Enabled() {
		return Decision{Result: Result{Allowed: true}, Source: "disabled"}
	}
	key := fmt.Sprintf(keyUserEndpoint, strings.TrimSpace(userID), strings.TrimSpace(endpoint))

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
		if err == nil {
			return l.decide(res, "redis")
		}
		l.log.Warn("redis rate limit unavailable, using local limiter", zap.Error(err))
	}
	return l.decide(l.local.Allow(key), "local")
}

func (l *UserLimiter) decide(res Result, source string) Decision {
	if !res.Allowed && res.RetryAfter < l.retryAfter {
		res.RetryAfter = l.retryAfter
	}
	return Decision{Result: res, Source: source}
}
