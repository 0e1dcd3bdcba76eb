package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	v1 "revsync/shared/contracts/review/v1"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(opts ...StoreOption) *Store {
	return NewStore(testLogger(), opts...)
}

// connect admits a client into its tenant the way the gateway does.
func connect(s *Store, connID, userID, orgID string) (*Client, *Tenant) {
	c := NewClient(connID, userID, orgID, time.Now().UTC(), 32)
	t := s.Join(c, time.Now().UTC())
	return c, t
}

// drain empties a client's send queue without blocking.
func drain(c *Client) []v1.Envelope {
	var out []v1.Envelope
	for {
		select {
		case env := <-c.Send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func decodePayload[T any](t *testing.T, env v1.Envelope) T {
	t.Helper()
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
	return p
}

// one asserts exactly one envelope of the given type and returns it.
func one(t *testing.T, envs []v1.Envelope, typ string) v1.Envelope {
	t.Helper()
	var found []v1.Envelope
	for _, e := range envs {
		if e.Type == typ {
			found = append(found, e)
		}
	}
	if len(found) != 1 {
		t.Fatalf("want exactly one %s, got %d (all: %v)", typ, len(found), types(envs))
	}
	return found[0]
}

func none(t *testing.T, envs []v1.Envelope, typ string) {
	t.Helper()
	for _, e := range envs {
		if e.Type == typ {
			t.Fatalf("unexpected %s envelope", typ)
		}
	}
}

func types(envs []v1.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

func TestJoinDeliversSnapshotAndAnnouncesPresence(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	alice, _ := connect(s, "c-alice", "alice", "acme")

	aliceEnvs := drain(alice)
	sync := decodePayload[v1.StateSyncPayload](t, one(t, aliceEnvs, v1.TypeStateSync))
	none(t, aliceEnvs, v1.TypeUserJoined) // the join notice goes to the rest of the tenant only

	if sync.Revision.Status != v1.StatusPending || sync.Revision.Rating != defaultRating {
		t.Fatalf("default revision=%+v", sync.Revision)
	}
	if len(sync.History) != 0 {
		t.Fatalf("history=%v want empty", sync.History)
	}
	if !reflect.DeepEqual(sync.ActiveUsers, []string{"alice"}) {
		t.Fatalf("activeUsers=%v want [alice]", sync.ActiveUsers)
	}

	bob, _ := connect(s, "c-bob", "bob", "acme")

	joined := decodePayload[v1.UserJoinedPayload](t, one(t, drain(alice), v1.TypeUserJoined))
	if joined.UserID != "bob" {
		t.Fatalf("joined.userId=%q want bob", joined.UserID)
	}
	if !reflect.DeepEqual(joined.ActiveUsers, []string{"alice", "bob"}) {
		t.Fatalf("joined.activeUsers=%v", joined.ActiveUsers)
	}

	bobSync := decodePayload[v1.StateSyncPayload](t, one(t, drain(bob), v1.TypeStateSync))
	if !reflect.DeepEqual(bobSync.ActiveUsers, []string{"alice", "bob"}) {
		t.Fatalf("bob sync activeUsers=%v", bobSync.ActiveUsers)
	}
}

func TestSecondTabStillAnnouncesJoin(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	tab1, _ := connect(s, "c1", "alice", "acme")
	drain(tab1)

	// Another presence appeared, even though it is the same logical user.
	connect(s, "c2", "alice", "acme")

	joined := decodePayload[v1.UserJoinedPayload](t, one(t, drain(tab1), v1.TypeUserJoined))
	if joined.UserID != "alice" {
		t.Fatalf("joined.userId=%q want alice", joined.UserID)
	}
	if !reflect.DeepEqual(joined.ActiveUsers, []string{"alice"}) {
		t.Fatalf("joined.activeUsers=%v want [alice]", joined.ActiveUsers)
	}
}

func TestUserLeftOnlyOnLastConnection(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	tab1, tenant := connect(s, "c1", "alice", "acme")
	tab2, _ := connect(s, "c2", "alice", "acme")
	bob, _ := connect(s, "c-bob", "bob", "acme")
	drain(tab1)
	drain(tab2)
	drain(bob)

	tenant.Leave("c1", time.Now().UTC())
	none(t, drain(bob), v1.TypeUserLeft)

	tenant.Leave("c2", time.Now().UTC())
	left := decodePayload[v1.UserLeftPayload](t, one(t, drain(bob), v1.TypeUserLeft))
	if left.UserID != "alice" {
		t.Fatalf("left.userId=%q want alice", left.UserID)
	}
	if !reflect.DeepEqual(left.ActiveUsers, []string{"bob"}) {
		t.Fatalf("left.activeUsers=%v want [bob]", left.ActiveUsers)
	}

	// Removal happens exactly once; a duplicate Leave is a no-op.
	tenant.Leave("c2", time.Now().UTC())
	none(t, drain(bob), v1.TypeUserLeft)
}

func TestStatusUpdateEchoesToAllAndAppendsHistory(t *testing.T) {
	t.Parallel()

	sink := NewMemorySink()
	s := newTestStore(WithAuditSink(sink))
	alice, tenant := connect(s, "c-alice", "alice", "acme")
	bob, _ := connect(s, "c-bob", "bob", "acme")
	drain(alice)
	drain(bob)

	approved := v1.StatusApproved
	now := time.Now().UTC()
	entry := tenant.StatusUpdate(bob, v1.StateUpdatePayload{Status: &approved}, now)

	for name, c := range map[string]*Client{"alice": alice, "bob": bob} {
		upd := decodePayload[v1.StateUpdatedPayload](t, one(t, drain(c), v1.TypeStateUpdated))
		if upd.Revision.Status != v1.StatusApproved {
			t.Fatalf("%s revision.status=%q want approved", name, upd.Revision.Status)
		}
		if upd.HistoryEntry.UserID != "bob" || upd.UpdatedBy != "bob" {
			t.Fatalf("%s authorship=%q/%q want bob", name, upd.HistoryEntry.UserID, upd.UpdatedBy)
		}
		if upd.Revision.LastUpdatedBy != "bob" || !upd.Revision.LastUpdatedAt.Equal(now) {
			t.Fatalf("%s server stamp=%q/%v", name, upd.Revision.LastUpdatedBy, upd.Revision.LastUpdatedAt)
		}
	}

	// previousValue snapshots only the submitted fields, pre-merge.
	if entry.PreviousValue.Status == nil || *entry.PreviousValue.Status != v1.StatusPending {
		t.Fatalf("previousValue.status=%v want pending", entry.PreviousValue.Status)
	}
	if entry.PreviousValue.Rating != nil || entry.PreviousValue.Comment != nil {
		t.Fatalf("previousValue carries unsubmitted fields: %+v", entry.PreviousValue)
	}
	if entry.NewValue.Status == nil || *entry.NewValue.Status != v1.StatusApproved {
		t.Fatalf("newValue.status=%v want approved", entry.NewValue.Status)
	}

	_, history, _ := tenant.Snapshot()
	if len(history) != 1 || history[0].ID != entry.ID {
		t.Fatalf("history=%v want the single new entry", history)
	}

	recs := sink.Records()
	if len(recs) != 1 || recs[0].OrgID != "acme" || recs[0].Entry.ID != entry.ID {
		t.Fatalf("audit records=%v want the ledger append", recs)
	}
}

func TestStatusUpdatePartialMerge(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	alice, tenant := connect(s, "c-alice", "alice", "acme")
	drain(alice)

	rating := 8
	tenant.StatusUpdate(alice, v1.StateUpdatePayload{Rating: &rating}, time.Now().UTC())

	rev, _, _ := tenant.Snapshot()
	if rev.Rating != 8 {
		t.Fatalf("rating=%d want 8", rev.Rating)
	}
	if rev.Status != v1.StatusPending {
		t.Fatalf("status=%q: partial update must not touch unsubmitted fields", rev.Status)
	}
}

func TestContentUpdateNoEchoNoHistory(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	alice, tenant := connect(s, "c-alice", "alice", "acme")
	bob, _ := connect(s, "c-bob", "bob", "acme")
	drain(alice)
	drain(bob)

	now := time.Now().UTC()
	tenant.ContentUpdate(alice, v1.ContentUpdatePayload{Content: "second draft", CursorPosition: 12}, now)

	none(t, drain(alice), v1.TypeContentUpdated) // never echoed to the sender

	upd := decodePayload[v1.ContentUpdatedPayload](t, one(t, drain(bob), v1.TypeContentUpdated))
	if upd.Content != "second draft" || upd.CursorPosition != 12 || upd.UpdatedBy != "alice" {
		t.Fatalf("content:updated=%+v", upd)
	}

	rev, history, _ := tenant.Snapshot()
	if rev.Content != "second draft" {
		t.Fatalf("revision.content=%q", rev.Content)
	}
	if rev.LastUpdatedBy != "alice" || !rev.LastUpdatedAt.Equal(now) {
		t.Fatalf("server stamp=%q/%v", rev.LastUpdatedBy, rev.LastUpdatedAt)
	}
	if len(history) != 0 {
		t.Fatalf("history=%v: content updates must not produce entries", history)
	}
}

func TestCursorMoveIsTransient(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	alice, tenant := connect(s, "c-alice", "alice", "acme")
	bob, _ := connect(s, "c-bob", "bob", "acme")
	drain(alice)
	drain(bob)

	before, _, _ := tenant.Snapshot()
	tenant.CursorMove(alice, v1.CursorUpdatePayload{Position: 42}, time.Now().UTC())

	none(t, drain(alice), v1.TypeCursorMoved)

	moved := decodePayload[v1.CursorMovedPayload](t, one(t, drain(bob), v1.TypeCursorMoved))
	if moved.UserID != "alice" || moved.Position != 42 {
		t.Fatalf("cursor:moved=%+v", moved)
	}

	after, history, _ := tenant.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("revision changed by cursor update: %+v -> %+v", before, after)
	}
	if len(history) != 0 {
		t.Fatalf("history=%v want empty", history)
	}
}

func TestTenantIsolation(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	alice, acme := connect(s, "c-alice", "alice", "acme")
	eve, _ := connect(s, "c-eve", "eve", "globex")
	drain(alice)
	drain(eve)

	approved := v1.StatusApproved
	acme.StatusUpdate(alice, v1.StateUpdatePayload{Status: &approved}, time.Now().UTC())
	acme.ContentUpdate(alice, v1.ContentUpdatePayload{Content: "x"}, time.Now().UTC())
	acme.Leave("c-alice", time.Now().UTC())

	if envs := drain(eve); len(envs) != 0 {
		t.Fatalf("cross-tenant delivery: %v", types(envs))
	}

	globex, ok := s.Get("globex")
	if !ok {
		t.Fatal("globex tenant missing")
	}
	rev, _, _ := globex.Snapshot()
	if rev.Status != v1.StatusPending || rev.Content != "" {
		t.Fatalf("globex revision mutated: %+v", rev)
	}
}

func TestSnapshotReflectsBoundedHistory(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	alice, tenant := connect(s, "c-alice", "alice", "acme")
	drain(alice)

	for i := 0; i <= HistoryLimit; i++ {
		r := i % (v1.MaxRating + 1)
		tenant.StatusUpdate(alice, v1.StateUpdatePayload{Rating: &r}, time.Now().UTC())
	}

	_, history, _ := tenant.Snapshot()
	if len(history) != HistoryLimit {
		t.Fatalf("history length=%d want %d", len(history), HistoryLimit)
	}
}
