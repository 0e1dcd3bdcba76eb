package hub

import (
	v1 "revsync/shared/contracts/review/v1"
)

// Ledger is the bounded, append-only audit timeline for one tenant,
// kept most-recent-first.
//
// The ledger performs no deduplication: two appends with identical
// timestamp+userId remain two entries. Collapsing them is display policy.
//
// Not internally locked; the owning Tenant's mutex guards all access.
type Ledger struct {
	entries []v1.HistoryEntry
	limit   int
}

// NewLedger constructs a ledger with the given capacity (HistoryLimit when <= 0).
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return &Ledger{
		entries: make([]v1.HistoryEntry, 0, limit),
		limit:   limit,
	}
}

// Append prepends the entry; the oldest (tail) entry is dropped on overflow.
func (l *Ledger) Append(e v1.HistoryEntry) {
	l.entries = append(l.entries, v1.HistoryEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = e

	if len(l.entries) > l.limit {
		l.entries = l.entries[:l.limit]
	}
}

// Entries returns a most-recent-first copy of the ledger.
func (l *Ledger) Entries() []v1.HistoryEntry {
	out := make([]v1.HistoryEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *Ledger) Len() int { return len(l.entries) }
