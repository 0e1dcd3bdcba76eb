package hub

import (
	"encoding/json"
	"time"

	v1 "revsync/shared/contracts/review/v1"
)

// The three update classes carry different persistence and broadcast rules:
//
//	state:update   -> merge + ledger entry + echo to all (sender included)
//	content:update -> overwrite content, no ledger entry, others only
//	cursor:update  -> no state at all, others only
//
// lastUpdatedBy / lastUpdatedAt are always stamped here, never trusted from
// the client; the hub is the single ordering authority per tenant.

// StatusUpdate shallow-merges the submitted fields into the revision and
// appends a ledger entry whose previousValue snapshots the pre-merge values
// of exactly the submitted fields.
func (t *Tenant) StatusUpdate(sender *Client, p v1.StateUpdatePayload, now time.Time) v1.HistoryEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prev v1.RevisionDelta
	if p.Status != nil {
		s := t.revision.Status
		prev.Status = &s
		t.revision.Status = *p.Status
	}
	if p.Rating != nil {
		r := t.revision.Rating
		prev.Rating = &r
		t.revision.Rating = *p.Rating
	}
	if p.Comment != nil {
		c := t.revision.Comment
		prev.Comment = &c
		t.revision.Comment = *p.Comment
	}
	t.revision.LastUpdatedBy = sender.UserID
	t.revision.LastUpdatedAt = now

	entry := v1.HistoryEntry{
		ID:            t.newEntryID(now),
		UserID:        sender.UserID,
		Action:        v1.ActionStateUpdate,
		Timestamp:     now,
		PreviousValue: prev,
		NewValue: v1.RevisionDelta{
			Status:  p.Status,
			Rating:  p.Rating,
			Comment: p.Comment,
		},
	}
	t.history.Append(entry)
	t.audit.Submit(AuditRecord{OrgID: t.ID, Entry: entry})

	t.broadcastAll(newEnvelope(v1.TypeStateUpdated, v1.StateUpdatedPayload{
		Revision:     t.revision,
		HistoryEntry: entry,
		UpdatedBy:    sender.UserID,
	}, now))

	t.metrics.EventsRouted.WithLabelValues(v1.TypeStateUpdate).Inc()
	return entry
}

// ContentUpdate overwrites the whole content field (last writer wins; earlier
// in-flight values are discarded). No ledger entry: per-keystroke writes would
// evict real status transitions from the bounded timeline. The sender is not
// echoed; it already holds the authoritative local value.
func (t *Tenant) ContentUpdate(sender *Client, p v1.ContentUpdatePayload, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.revision.Content = p.Content
	t.revision.LastUpdatedBy = sender.UserID
	t.revision.LastUpdatedAt = now

	t.broadcastOthers(sender.ConnID, newEnvelope(v1.TypeContentUpdated, v1.ContentUpdatedPayload{
		Content:        p.Content,
		CursorPosition: p.CursorPosition,
		UpdatedBy:      sender.UserID,
	}, now))

	t.metrics.EventsRouted.WithLabelValues(v1.TypeContentUpdate).Inc()
}

// CursorMove is purely transient: nothing is written into the revision.
func (t *Tenant) CursorMove(sender *Client, p v1.CursorUpdatePayload, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.broadcastOthers(sender.ConnID, newEnvelope(v1.TypeCursorMoved, v1.CursorMovedPayload{
		UserID:   sender.UserID,
		Position: p.Position,
	}, now))

	t.metrics.EventsRouted.WithLabelValues(v1.TypeCursorUpdate).Inc()
}

// newEntryID mints a sortable ledger entry id, falling back to random hex if
// the ULID source fails.
func (t *Tenant) newEntryID(now time.Time) string {
	id, err := NewHistoryEntryID(now)
	if err != nil {
		return NewRandomHex(13)
	}
	return id
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
