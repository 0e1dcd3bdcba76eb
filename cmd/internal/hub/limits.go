package hub

import (
	"time"

	v1 "revsync/shared/contracts/review/v1"
)

// Security/performance limits.
const (
	// Max bytes per websocket frame read (hard limit).
	// Must admit the largest legal content:update after JSON escaping:
	// a content byte can expand to a 6-byte \u00XX sequence on the wire.
	maxFrameBytes = 6*v1.MaxContentBytes + 8<<10

	// Bounded ledger length per tenant; oldest entries are evicted on overflow.
	HistoryLimit = 50
)

const (
	// Heartbeat defaults (overridable via GatewayConfig).
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window).
	// The shared total is sized for cursor traffic, the chattiest update
	// class; state and content writes carry tighter per-class budgets.
	rateLimitEvents        = 240
	rateLimitStateEvents   = 40
	rateLimitContentEvents = 120
	rateLimitWindow        = 10 * time.Second
)

const (
	// Default idle window before a tenant with zero connections is reaped.
	defaultIdleWindow = 30 * time.Minute
)
