// Package ratelimit 提供按 key 区分的进程内令牌桶限流
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	// Allow checks if the request is allowed for the given key and limit
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Limit defines the rate limit rule: Rate tokens per Period, bucket size Burst
type Limit struct {
	Rate   float64
	Period time.Duration
	Burst  int
}

// PerSecond 构造每秒 rps 个令牌的限流规则
func PerSecond(rps float64, burst int) Limit {
	return Limit{Rate: rps, Period: time.Second, Burst: burst}
}

func (l Limit) every() rate.Limit {
	if l.Period <= 0 {
		return rate.Inf
	}
	return rate.Limit(l.Rate / l.Period.Seconds())
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalRateLimiter 在进程内为每个 key 维护一个 x/time/rate 令牌桶
type LocalRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewLocalRateLimiter creates a new LocalRateLimiter
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow checks if the request is allowed
func (l *LocalRateLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if limit.Burst <= 0 {
		return nil, fmt.Errorf("rate limit check failed: burst must be positive, got %d", limit.Burst)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || b.limiter.Burst() != limit.Burst || b.limiter.Limit() != limit.every() {
		b = &bucket{limiter: rate.NewLimiter(limit.every(), limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &Result{}
	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); !r.OK() || delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
	} else {
		res.Allowed = true
	}

	tokens := b.limiter.TokensAt(now)
	if tokens > 0 {
		res.Remaining = int(tokens)
	}
	if per := float64(b.limiter.Limit()); per > 0 && b.limiter.Limit() != rate.Inf {
		missing := float64(limit.Burst) - tokens
		res.ResetAfter = time.Duration(missing / per * float64(time.Second))
	}
	return res, nil
}

// Sweep 删除 idle 时间内未被访问的 key，返回删除数量
func (l *LocalRateLimiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}

// Run 周期性清理空闲 key，直到 ctx 结束
func (l *LocalRateLimiter) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(idle)
		}
	}
}
