package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the hub's Prometheus instruments.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ActiveTenants     prometheus.Gauge

	EventsRouted       *prometheus.CounterVec
	BroadcastsEnqueued prometheus.Counter
	BroadcastsDropped  prometheus.Counter

	AdmissionsRejected prometheus.Counter
	TenantsReaped      prometheus.Counter
	AuditDropped       prometheus.Counter
}

// NewMetrics constructs and registers the hub instruments.
// A nil registerer yields a working but unexported instrument set (used in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "active_connections",
			Help: "Live websocket connections across all tenants.",
		}),
		ActiveTenants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "active_tenants",
			Help: "Tenant state records currently held in memory.",
		}),
		EventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "events_routed_total",
			Help: "Inbound update events applied, by kind.",
		}, []string{"kind"}),
		BroadcastsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "broadcasts_enqueued_total",
			Help: "Events enqueued to connection send queues.",
		}),
		BroadcastsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "broadcasts_dropped_total",
			Help: "Events dropped because a connection send queue was full.",
		}),
		AdmissionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "admissions_rejected_total",
			Help: "Handshakes rejected by the identity gate.",
		}),
		TenantsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "tenants_reaped_total",
			Help: "Idle tenant state records evicted by the reaper.",
		}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "revsync", Subsystem: "hub",
			Name: "audit_dropped_total",
			Help: "Ledger entries dropped by the audit sink under backpressure.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.ActiveTenants,
		m.EventsRouted,
		m.BroadcastsEnqueued,
		m.BroadcastsDropped,
		m.AdmissionsRejected,
		m.TenantsReaped,
		m.AuditDropped,
	)
	return m
}
