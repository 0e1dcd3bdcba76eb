package hub

import (
	"context"
	"sync"

	v1 "revsync/shared/contracts/review/v1"
)

// AuditRecord couples a ledger entry with the tenant it belongs to.
type AuditRecord struct {
	OrgID string
	Entry v1.HistoryEntry
}

// AuditSink receives every ledger append for optional durable storage.
//
// Requirements:
//   - Submit must never block: the in-memory mutation and broadcast have
//     already happened, and durability writes must not delay the hub.
//   - Implementations drop under backpressure rather than queueing unboundedly.
type AuditSink interface {
	Submit(rec AuditRecord)
	Close(ctx context.Context) error
}

// NopSink discards all records. Used when no database is configured.
type NopSink struct{}

// Submit discards the record.
func (NopSink) Submit(AuditRecord) {}

// Close is a no-op.
func (NopSink) Close(context.Context) error { return nil }

// MemorySink collects records in memory, in submission order. Test double.
type MemorySink struct {
	mu   sync.Mutex
	recs []AuditRecord
}

// NewMemorySink constructs an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Submit appends the record.
func (s *MemorySink) Submit(rec AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

// Records returns a copy of everything submitted so far.
func (s *MemorySink) Records() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditRecord, len(s.recs))
	copy(out, s.recs)
	return out
}

// Close is a no-op.
func (s *MemorySink) Close(context.Context) error { return nil }
