// Package app wires the revsync server runtime: config, logging, HTTP routes,
// the review hub gateway, and the optional Postgres audit sink.
//
// It is intentionally small and deterministic to keep behavior predictable.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"revsync/cmd/internal/hub"
	"revsync/cmd/internal/jobs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the revsync server runtime. It owns HTTP wiring and the lifecycle of
// the tenant store, the audit sink, and the DB pool.
type App struct {
	cfg Config
	log Logger

	reg     *prometheus.Registry
	metrics *hub.Metrics

	dbPool    *pgxpool.Pool
	dbEnabled bool

	audit hub.AuditSink
	store *hub.Store
	ws    *hub.Gateway

	feed       *jobs.Feed
	jobHandler *jobs.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := hub.NewMetrics(reg)

	dbPool, dbEnabled, audit, err := newAuditSink(context.Background(), cfg, log, metrics)
	if err != nil {
		return nil, err
	}

	idleWindow := cfg.TenantIdleWindow
	if !cfg.TenantReapEnabled {
		idleWindow = 0
	}

	store := hub.NewStore(log,
		hub.WithAuditSink(audit),
		hub.WithIdleWindow(idleWindow),
		hub.WithMetrics(metrics),
	)

	ws := hub.NewGateway(log, store, metrics, hub.GatewayConfig{
		OriginRequired:   cfg.OriginRequired,
		AllowedOrigins:   cfg.AllowedOrigins,
		WriteTimeout:     cfg.WSWriteTimeout,
		ReadIdleTimeout:  cfg.WSReadIdleTimeout,
		SendQueueSize:    cfg.WSSendQueue,
		HeartbeatEvery:   cfg.WSHeartbeatInterval,
		HeartbeatTimeout: cfg.WSHeartbeatTimeout,
		RateEvents:       cfg.WSRateEvents,
		RateWindow:       cfg.WSRateWindow,
	})

	feed := jobs.NewFeed(log,
		jobs.WithMaxLogLines(cfg.JobsMaxLogLines),
		jobs.WithTerminalRetention(cfg.JobsTerminalRetention),
	)

	return &App{
		cfg:        cfg,
		log:        log,
		reg:        reg,
		metrics:    metrics,
		dbPool:     dbPool,
		dbEnabled:  dbEnabled,
		audit:      audit,
		store:      store,
		ws:         ws,
		feed:       feed,
		jobHandler: jobs.NewHandler(log, feed),
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.TenantReapEnabled {
		a.store.StartReaper(ctx, a.cfg.TenantReapInterval)
	}
	a.feed.StartPruner(ctx, time.Minute)

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.reg, a.ws, a.jobHandler)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	// Drain pending audit writes before dropping the pool.
	if err := a.audit.Close(shutdownCtx); err != nil {
		a.log.Error("audit.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newAuditSink decides between Postgres-backed audit durability and the no-op
// sink. Collaboration state is in-memory either way; only the history ledger
// is mirrored to the database.
func newAuditSink(ctx context.Context, cfg Config, log Logger, metrics *hub.Metrics) (*pgxpool.Pool, bool, hub.AuditSink, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.audit_nop")
		return nil, false, hub.NopSink{}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, false, nil, err
	}

	sink, err := hub.NewPostgresAuditLog(log, pool,
		hub.WithAuditSchema(cfg.AuditSchema),
		hub.WithAuditQueueSize(cfg.AuditQueueSize),
		hub.WithAuditDropCounter(metrics.AuditDropped),
	)
	if err != nil {
		pool.Close()
		return nil, false, nil, err
	}

	log.Info("db.enabled.audit_postgres", "schema", cfg.AuditSchema)
	return pool, true, sink, nil
}
