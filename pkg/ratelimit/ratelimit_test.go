package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter() (*LocalRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)}
	l := NewLocalRateLimiter()
	l.now = clock.now
	return l, clock
}

func TestLocalRateLimiter_BurstThenDeny(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()
	limit := PerSecond(1, 2)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "10.0.0.1", limit)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d denied inside burst", i)
		}
	}

	res, err := l.Allow(ctx, "10.0.0.1", limit)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("third request should be denied")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Second {
		t.Fatalf("retry after = %v, want (0, 1s]", res.RetryAfter)
	}

	clock.t = clock.t.Add(time.Second)
	res, err = l.Allow(ctx, "10.0.0.1", limit)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed {
		t.Fatal("request after refill should be allowed")
	}
}

func TestLocalRateLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()
	limit := PerSecond(1, 1)

	if res, _ := l.Allow(ctx, "a", limit); !res.Allowed {
		t.Fatal("a denied")
	}
	if res, _ := l.Allow(ctx, "a", limit); res.Allowed {
		t.Fatal("a should be exhausted")
	}
	if res, _ := l.Allow(ctx, "b", limit); !res.Allowed {
		t.Fatal("b should have its own bucket")
	}
}

func TestLocalRateLimiter_Remaining(t *testing.T) {
	l, _ := newTestLimiter()
	res, err := l.Allow(context.Background(), "k", PerSecond(10, 5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Remaining != 4 {
		t.Fatalf("remaining = %d, want 4", res.Remaining)
	}
	if res.ResetAfter <= 0 {
		t.Fatalf("reset after = %v, want positive", res.ResetAfter)
	}
}

func TestLocalRateLimiter_Errors(t *testing.T) {
	l, _ := newTestLimiter()
	if _, err := l.Allow(context.Background(), "k", PerSecond(1, 0)); err == nil {
		t.Fatal("expected error for zero burst")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Allow(ctx, "k", PerSecond(1, 1)); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestLocalRateLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter()
	ctx := context.Background()
	_, _ = l.Allow(ctx, "old", PerSecond(1, 1))
	clock.t = clock.t.Add(10 * time.Minute)
	_, _ = l.Allow(ctx, "new", PerSecond(1, 1))

	if n := l.Sweep(5 * time.Minute); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, ok := l.buckets["new"]; !ok {
		t.Fatal("recent key should survive")
	}
}
