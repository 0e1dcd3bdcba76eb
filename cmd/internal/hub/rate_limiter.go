package hub

import (
	"sync"
	"time"

	v1 "revsync/shared/contracts/review/v1"
)

// RateLimiter enforces per-connection event budgets over a sliding window.
//
// Beyond the shared total, each update class carries its own budget: status
// transitions and content writes are far less frequent than cursor traffic,
// so a connection flooding state:update frames is cut off long before it
// exhausts the shared window.
type RateLimiter struct {
	mu     sync.Mutex
	events []classedEvent
	limit  int
	class  map[string]int
	window time.Duration
}

type classedEvent struct {
	at   time.Time
	kind string
}

// NewRateLimiter constructs a RateLimiter with safe defaults when inputs are invalid.
// The per-class budgets come from the protocol limits; the shared total is configurable.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		events: make([]classedEvent, 0, limit+8),
		limit:  limit,
		class: map[string]int{
			v1.TypeStateUpdate:   rateLimitStateEvents,
			v1.TypeContentUpdate: rateLimitContentEvents,
		},
		window: window,
	}
}

// Allow reports whether an event of the given kind at time "now" should be
// permitted. Kinds without a class budget (cursor traffic, error frames) are
// bounded by the shared total only.
func (r *RateLimiter) Allow(kind string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cut := now.Add(-r.window)
	dst := r.events[:0]
	for _, e := range r.events {
		if e.at.After(cut) {
			dst = append(dst, e)
		}
	}
	r.events = dst

	if len(r.events) >= r.limit {
		return false
	}
	if budget, capped := r.class[kind]; capped {
		n := 0
		for _, e := range r.events {
			if e.kind == kind {
				n++
			}
		}
		if n >= budget {
			return false
		}
	}
	r.events = append(r.events, classedEvent{at: now, kind: kind})
	return true
}
