package handler

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestClientLimiter_sweep(t *testing.T) {
	cl := newClientLimiter(1, 1)
	start := time.Now()

	cl.bucket("10.0.0.1", start)
	cl.bucket("10.0.0.2", start.Add(9*time.Minute))

	if n := cl.sweep(start.Add(11 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 bucket after sweep, got %d", n)
	}
	if _, ok := cl.buckets["10.0.0.2"]; !ok {
		t.Error("recently seen bucket was swept")
	}
}

func TestClientLimiter_sameBucketPerIP(t *testing.T) {
	cl := newClientLimiter(1, 0)
	now := time.Now()
	if cl.bucket("a", now) != cl.bucket("a", now) {
		t.Error("expected the same limiter for one IP")
	}
	if cl.bucket("a", now).Burst() != 1 {
		t.Error("burst below 1 must be raised to 1")
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Now()
	lim := rate.NewLimiter(rate.Limit(0.5), 1)
	lim.AllowN(now, 1)

	if got := retryAfter(lim, now); got != "2" {
		t.Errorf("retry after: got %q, want 2", got)
	}
	// The probe reservation must not consume a token.
	if !lim.AllowN(now.Add(2*time.Second), 1) {
		t.Error("token was not returned after computing Retry-After")
	}
}
