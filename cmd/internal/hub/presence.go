package hub

import (
	"sort"
	"time"
)

// Presence tracks the many-to-one mapping from physical connections to
// logical users within one tenant.
//
// It keeps a bidirectional index so "does this user have any remaining
// connections" is an O(1) lookup instead of a scan.
//
// Not internally locked; the owning Tenant's mutex guards all access.
type Presence struct {
	conns  map[string]presenceRecord      // connID -> record
	byUser map[string]map[string]struct{} // userID -> set of connIDs
}

type presenceRecord struct {
	userID   string
	joinedAt time.Time
}

// NewPresence constructs an empty presence index.
func NewPresence() *Presence {
	return &Presence{
		conns:  make(map[string]presenceRecord),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register adds the connection. It is idempotent per connID and reports
// whether the connection was newly added.
func (p *Presence) Register(connID, userID string, now time.Time) bool {
	if connID == "" || userID == "" {
		return false
	}
	if _, ok := p.conns[connID]; ok {
		return false
	}

	p.conns[connID] = presenceRecord{userID: userID, joinedAt: now}
	set := p.byUser[userID]
	if set == nil {
		set = make(map[string]struct{})
		p.byUser[userID] = set
	}
	set[connID] = struct{}{}
	return true
}

// Unregister removes the connection. stillPresent reports whether the same
// user retains at least one other live connection in the tenant; ok reports
// whether the connection was registered at all.
func (p *Presence) Unregister(connID string) (userID string, stillPresent bool, ok bool) {
	rec, found := p.conns[connID]
	if !found {
		return "", false, false
	}
	delete(p.conns, connID)

	set := p.byUser[rec.userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(p.byUser, rec.userID)
		return rec.userID, false, true
	}
	return rec.userID, true, true
}

// ActiveUsers returns the sorted distinct userIds with at least one live connection.
func (p *Presence) ActiveUsers() []string {
	out := make([]string, 0, len(p.byUser))
	for u := range p.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Connections returns the number of live connections in the tenant.
func (p *Presence) Connections() int { return len(p.conns) }
