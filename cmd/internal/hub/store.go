package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store owns every tenant state record for the lifetime of the process.
// It is constructed explicitly and handed to the gateway, so there is no
// process-wide mutable map hiding in package scope.
//
// No operation ever reads or mutates state across two different tenants.
type Store struct {
	log     *slog.Logger
	audit   AuditSink
	metrics *Metrics

	// idleWindow bounds memory growth: a tenant with zero connections for
	// longer than the window is evicted by Reap. Zero disables reaping.
	idleWindow time.Duration

	mu      sync.RWMutex
	tenants map[string]*Tenant
}

// StoreOption configures Store behavior.
type StoreOption func(*Store)

// WithAuditSink routes every ledger append into the given sink.
func WithAuditSink(s AuditSink) StoreOption {
	return func(st *Store) {
		if s != nil {
			st.audit = s
		}
	}
}

// WithIdleWindow sets how long an empty tenant is retained before eviction.
// Zero or negative disables eviction (indefinite retention).
func WithIdleWindow(d time.Duration) StoreOption {
	return func(st *Store) { st.idleWindow = d }
}

// WithMetrics attaches a shared instrument set.
func WithMetrics(m *Metrics) StoreOption {
	return func(st *Store) {
		if m != nil {
			st.metrics = m
		}
	}
}

// NewStore constructs an empty tenant store.
func NewStore(log *slog.Logger, opts ...StoreOption) *Store {
	if log == nil {
		log = slog.Default()
	}
	st := &Store{
		log:        log,
		audit:      NopSink{},
		idleWindow: defaultIdleWindow,
		tenants:    make(map[string]*Tenant),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(st)
		}
	}
	if st.metrics == nil {
		st.metrics = NewMetrics(nil)
	}
	return st
}

// GetOrCreate returns the tenant for orgID, allocating a fresh one with the
// default revision on first access. Subsequent calls return the same instance.
func (s *Store) GetOrCreate(orgID string) *Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(orgID, time.Now().UTC())
}

func (s *Store) getOrCreateLocked(orgID string, now time.Time) *Tenant {
	if t, ok := s.tenants[orgID]; ok {
		return t
	}
	t := newTenant(s.log, orgID, s.audit, s.metrics, now)
	s.tenants[orgID] = t
	s.metrics.ActiveTenants.Inc()
	s.log.Info("store.tenant.create", "org_id", orgID)
	return t
}

// Join admits the client into its tenant, creating the tenant if needed.
//
// Lookup and registration happen under the store lock so a concurrent Reap
// can never evict a tenant between the lookup and the membership insert.
func (s *Store) Join(c *Client, now time.Time) *Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.getOrCreateLocked(c.OrgID, now)
	t.Join(c, now)
	return t
}

// Get returns the tenant for orgID without creating it.
func (s *Store) Get(orgID string) (*Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[orgID]
	return t, ok
}

// Count returns the number of tenant records currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants)
}

// Reap evicts tenants that have had zero connections for longer than the idle
// window. Returns the number of tenants removed.
func (s *Store) Reap(now time.Time) int {
	if s.idleWindow <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for id, t := range s.tenants {
		since, idle := t.idleSince()
		if !idle || now.Sub(since) < s.idleWindow {
			continue
		}
		delete(s.tenants, id)
		s.metrics.ActiveTenants.Dec()
		s.metrics.TenantsReaped.Inc()
		s.log.Info("store.tenant.reap", "org_id", id, "idle", now.Sub(since).String())
		reaped++
	}
	return reaped
}

// StartReaper runs Reap on a fixed interval until the context is cancelled.
func (s *Store) StartReaper(ctx context.Context, every time.Duration) {
	if s.idleWindow <= 0 {
		return
	}
	if every <= 0 {
		every = time.Minute
	}

	go func() {
		t := time.NewTicker(every)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				s.Reap(now.UTC())
			}
		}
	}()
}
