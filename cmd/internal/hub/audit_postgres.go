package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	auditDefaultQueueSize  = 1024
	auditInsertTimeout     = 5 * time.Second
	auditDefaultSchema     = "revsync"
	auditDefaultCloseGrace = 10 * time.Second
)

// PostgresAuditLog is an AuditSink backed by PostgreSQL.
//
// Ownership model:
// - PostgresAuditLog does NOT own the pgx pool. The caller must close the pool.
//
// Concurrency model:
// - Submit hands the record to a bounded queue and returns immediately.
// - A single writer goroutine drains the queue; when the queue is full the
//   record is dropped and counted. The in-memory ledger remains authoritative.
type PostgresAuditLog struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	schema string

	queue   chan AuditRecord
	dropped prometheus.Counter

	writerDone chan struct{}
	closeOnce  sync.Once
}

// PostgresAuditOption configures PostgresAuditLog behavior.
type PostgresAuditOption func(*PostgresAuditLog) error

// WithAuditSchema sets the DB schema used by the sink (default: "revsync").
// The schema name is validated and safely quoted in queries.
func WithAuditSchema(schema string) PostgresAuditOption {
	return func(s *PostgresAuditLog) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("hub: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("hub: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithAuditQueueSize sets the bounded submission queue size.
func WithAuditQueueSize(n int) PostgresAuditOption {
	return func(s *PostgresAuditLog) error {
		if n <= 0 {
			return errors.New("hub: non-positive audit queue size")
		}
		s.queue = make(chan AuditRecord, n)
		return nil
	}
}

// WithAuditDropCounter wires the sink's overflow drops into a metrics counter.
func WithAuditDropCounter(c prometheus.Counter) PostgresAuditOption {
	return func(s *PostgresAuditLog) error {
		s.dropped = c
		return nil
	}
}

// NewPostgresAuditLog constructs a Postgres-backed audit sink and starts its writer.
func NewPostgresAuditLog(log *slog.Logger, pool *pgxpool.Pool, opts ...PostgresAuditOption) (*PostgresAuditLog, error) {
	if pool == nil {
		return nil, errors.New("hub: nil pool")
	}
	s := &PostgresAuditLog{
		log:        log,
		pool:       pool,
		schema:     auditDefaultSchema,
		queue:      make(chan AuditRecord, auditDefaultQueueSize),
		writerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	go s.writer()
	return s, nil
}

// Submit enqueues the record without blocking; it is dropped on overflow.
func (s *PostgresAuditLog) Submit(rec AuditRecord) {
	select {
	case s.queue <- rec:
	default:
		if s.dropped != nil {
			s.dropped.Inc()
		}
		s.log.Warn("audit.drop.backpressure", "org_id", rec.OrgID, "entry_id", rec.Entry.ID)
	}
}

// Close stops accepting records, drains what is already queued, and waits for
// the writer up to the context deadline (or a default grace period).
func (s *PostgresAuditLog) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.queue) })

	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, auditDefaultCloseGrace)
		defer cancel()
	}

	select {
	case <-s.writerDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PostgresAuditLog) writer() {
	defer close(s.writerDone)

	for rec := range s.queue {
		if err := s.insert(rec); err != nil {
			s.log.Warn("audit.insert.fail", "org_id", rec.OrgID, "entry_id", rec.Entry.ID, "err", err)
		}
	}
}

func (s *PostgresAuditLog) insert(rec AuditRecord) error {
	prev, err := json.Marshal(rec.Entry.PreviousValue)
	if err != nil {
		return fmt.Errorf("marshal previous_value: %w", err)
	}
	next, err := json.Marshal(rec.Entry.NewValue)
	if err != nil {
		return fmt.Errorf("marshal new_value: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditInsertTimeout)
	defer cancel()

	table := pgIdent(s.schema, "review_audit")

	// Entry ids are unique (ULID); replays from retried submissions are benign.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (entry_id, org_id, user_id, action, ts, previous_value, new_value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (entry_id) DO NOTHING`,
		rec.Entry.ID, rec.OrgID, rec.Entry.UserID, rec.Entry.Action, rec.Entry.Timestamp, prev, next,
	)
	return err
}

// ---- identifier quoting ----

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent renders schema.table with both parts quoted.
// Both parts are validated before use; quoting is belt and braces.
func pgIdent(schema, table string) string {
	return `"` + schema + `"."` + table + `"`
}
