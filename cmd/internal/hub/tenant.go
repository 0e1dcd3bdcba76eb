// Package hub implements the multi-tenant review synchronization hub:
// per-organization review state, live presence, a bounded audit ledger,
// three-class update routing, and websocket fanout.
package hub

import (
	"log/slog"
	"sync"
	"time"

	v1 "revsync/shared/contracts/review/v1"
)

// defaultRating is the rating assigned to a freshly created tenant revision.
const defaultRating = 5

// Tenant is the isolated state record for one organization. It is created
// lazily on first connection and owns everything inside the tenant boundary:
// the revision, the ledger, presence, and the live connection set.
//
// Concurrency guarantees:
//   - mu serializes every message handled for this tenant. Mutation and
//     broadcast enqueue happen under the same critical section, so every
//     connection observes the identical per-tenant event order.
//   - Distinct tenants share nothing mutable and proceed in parallel.
//   - Broadcast never blocks (drops under backpressure) and is panic-safe
//     because Client.Send is never closed by the server.
type Tenant struct {
	log *slog.Logger
	ID  string

	audit   AuditSink
	metrics *Metrics

	mu       sync.Mutex
	revision v1.Revision
	history  *Ledger
	presence *Presence
	clients  map[string]*Client // connID -> client

	// emptySince is the instant the connection count dropped to zero;
	// zero while any connection is live. Read by the store's reaper.
	emptySince time.Time
}

func newTenant(log *slog.Logger, id string, audit AuditSink, metrics *Metrics, now time.Time) *Tenant {
	return &Tenant{
		log:     log,
		ID:      id,
		audit:   audit,
		metrics: metrics,
		revision: v1.Revision{
			Status: v1.StatusPending,
			Rating: defaultRating,
		},
		history:    NewLedger(HistoryLimit),
		presence:   NewPresence(),
		clients:    make(map[string]*Client),
		emptySince: now,
	}
}

// Join registers the connection, unicasts the full state snapshot to it, and
// announces the new presence to the rest of the tenant.
//
// The join notice fires unconditionally: a second tab from the same user is
// still "another presence appeared".
func (t *Tenant) Join(c *Client, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.presence.Register(c.ConnID, c.UserID, now) {
		return
	}
	t.clients[c.ConnID] = c
	t.emptySince = time.Time{}
	t.metrics.ActiveConnections.Inc()

	active := t.presence.ActiveUsers()

	t.enqueue(c, newEnvelope(v1.TypeStateSync, v1.StateSyncPayload{
		Revision:    t.revision,
		History:     t.history.Entries(),
		ActiveUsers: active,
	}, now))

	t.broadcastOthers(c.ConnID, newEnvelope(v1.TypeUserJoined, v1.UserJoinedPayload{
		UserID:      c.UserID,
		ActiveUsers: active,
	}, now))

	t.log.Info("tenant.join", "org_id", t.ID, "user_id", c.UserID, "conn_id", c.ConnID, "connections", t.presence.Connections())
}

// Leave removes the connection exactly once. user:left is broadcast only when
// this was the user's last live connection in the tenant, so multi-tab usage
// never produces spurious departure notices.
func (t *Tenant) Leave(connID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, stillPresent, ok := t.presence.Unregister(connID)
	if !ok {
		return
	}

	c := t.clients[connID]
	delete(t.clients, connID)
	t.metrics.ActiveConnections.Dec()
	if len(t.clients) == 0 {
		t.emptySince = now
	}

	// Signal client shutdown after removing it from the fanout set, so no
	// broadcaster holds a pointer to a client mid-teardown.
	if c != nil {
		c.Close()
	}

	if !stillPresent {
		t.broadcastAll(newEnvelope(v1.TypeUserLeft, v1.UserLeftPayload{
			UserID:      userID,
			ActiveUsers: t.presence.ActiveUsers(),
		}, now))
	}

	t.log.Info("tenant.leave", "org_id", t.ID, "user_id", userID, "conn_id", connID, "user_still_present", stillPresent)
}

// Snapshot returns copies of the revision, ledger, and active-user set.
func (t *Tenant) Snapshot() (v1.Revision, []v1.HistoryEntry, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revision, t.history.Entries(), t.presence.ActiveUsers()
}

// Connections returns the live connection count.
func (t *Tenant) Connections() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presence.Connections()
}

// idleSince reports when the tenant last dropped to zero connections.
// ok is false while any connection is live.
func (t *Tenant) idleSince() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.clients) > 0 || t.emptySince.IsZero() {
		return time.Time{}, false
	}
	return t.emptySince, true
}

// ---- fanout (callers hold t.mu) ----

// enqueue delivers to a single connection. Non-blocking: if the queue is full
// or the client is shutting down, the event is dropped and counted.
func (t *Tenant) enqueue(c *Client, env v1.Envelope) {
	if c == nil {
		return
	}

	select {
	case <-c.Done():
		return
	default:
	}

	select {
	case c.Send <- env:
		t.metrics.BroadcastsEnqueued.Inc()
	default:
		t.metrics.BroadcastsDropped.Inc()
		t.log.Warn("tenant.broadcast.drop", "org_id", t.ID, "conn_id", c.ConnID, "type", env.Type)
	}
}

func (t *Tenant) broadcastAll(env v1.Envelope) {
	for _, c := range t.clients {
		t.enqueue(c, env)
	}
}

func (t *Tenant) broadcastOthers(exceptConnID string, env v1.Envelope) {
	for id, c := range t.clients {
		if id == exceptConnID {
			continue
		}
		t.enqueue(c, env)
	}
}

// newEnvelope wraps a payload into the canonical wire envelope.
func newEnvelope(typ string, payload any, ts time.Time) v1.Envelope {
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      NewRandomHex(10),
		TS:      ts,
		Payload: mustMarshal(payload),
	}
}
