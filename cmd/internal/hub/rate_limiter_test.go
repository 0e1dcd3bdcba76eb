package hub

import (
	"testing"
	"time"

	v1 "revsync/shared/contracts/review/v1"
)

func TestRateLimiterBlocksOverSharedLimit(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow(v1.TypeCursorUpdate, now) {
			t.Fatalf("event %d denied under the limit", i)
		}
	}
	if rl.Allow(v1.TypeCursorUpdate, now) {
		t.Fatal("event over the limit allowed")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	rl := NewRateLimiter(2, time.Second)

	rl.Allow(v1.TypeCursorUpdate, now)
	rl.Allow(v1.TypeCursorUpdate, now)
	if rl.Allow(v1.TypeCursorUpdate, now.Add(500*time.Millisecond)) {
		t.Fatal("allowed inside a full window")
	}
	if !rl.Allow(v1.TypeCursorUpdate, now.Add(1100*time.Millisecond)) {
		t.Fatal("denied after the window slid past the old events")
	}
}

func TestRateLimiterClassBudgets(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	rl := NewRateLimiter(rateLimitEvents, time.Second)

	// Exhaust the state:update budget without touching the shared total.
	for i := 0; i < rateLimitStateEvents; i++ {
		if !rl.Allow(v1.TypeStateUpdate, now) {
			t.Fatalf("state event %d denied under its budget", i)
		}
	}
	if rl.Allow(v1.TypeStateUpdate, now) {
		t.Fatal("state event over its class budget allowed")
	}

	// Other classes still have headroom in the same window.
	if !rl.Allow(v1.TypeContentUpdate, now) {
		t.Fatal("content event denied by a full state budget")
	}
	if !rl.Allow(v1.TypeCursorUpdate, now) {
		t.Fatal("cursor event denied by a full state budget")
	}
}

func TestRateLimiterDefaults(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, 0)
	if rl.limit != rateLimitEvents || rl.window != rateLimitWindow {
		t.Fatalf("defaults=(%d,%v) want (%d,%v)", rl.limit, rl.window, rateLimitEvents, rateLimitWindow)
	}
	if rl.class[v1.TypeStateUpdate] != rateLimitStateEvents || rl.class[v1.TypeContentUpdate] != rateLimitContentEvents {
		t.Fatalf("class budgets=%v", rl.class)
	}
}
