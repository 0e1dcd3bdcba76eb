package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Websocket policy. Origins is the allow-list of origins permitted to
	// open review connections; both knobs are externally supplied, never
	// derived inside the hub.
	OriginRequired bool
	AllowedOrigins []string

	WSWriteTimeout      time.Duration
	WSReadIdleTimeout   time.Duration
	WSSendQueue         int
	WSHeartbeatInterval time.Duration
	WSHeartbeatTimeout  time.Duration
	WSRateEvents        int
	WSRateWindow        time.Duration

	// Optional audit durability. Empty DatabaseURL keeps the hub fully
	// in-memory; collaboration state is never restored from the database.
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	AuditSchema    string
	AuditQueueSize int

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Tenant eviction. Reaping disabled turns idle retention indefinite.
	TenantReapEnabled  bool
	TenantIdleWindow   time.Duration
	TenantReapInterval time.Duration

	// Pipeline job feed retention.
	JobsMaxLogLines       int
	JobsTerminalRetention time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("REVSYNC_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("REVSYNC_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("REVSYNC_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("REVSYNC_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("REVSYNC_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("REVSYNC_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("REVSYNC_HTTP_MAX_HEADER_BYTES", 1<<20),

		// Secure-by-default: origin required, only localhost allowed.
		OriginRequired: EnvBool("REVSYNC_WS_ORIGIN_REQUIRED", true),
		AllowedOrigins: EnvCSV("REVSYNC_WS_ALLOWED_ORIGINS", "http://localhost,http://127.0.0.1"),

		WSWriteTimeout:      EnvDuration("REVSYNC_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadIdleTimeout:   EnvDuration("REVSYNC_WS_READ_IDLE_TIMEOUT", 2*time.Minute),
		WSSendQueue:         EnvInt("REVSYNC_WS_SEND_QUEUE", 256),
		WSHeartbeatInterval: EnvDuration("REVSYNC_WS_HEARTBEAT_INTERVAL", 25*time.Second),
		WSHeartbeatTimeout:  EnvDuration("REVSYNC_WS_HEARTBEAT_TIMEOUT", 5*time.Second),
		WSRateEvents:        EnvInt("REVSYNC_WS_RATE_EVENTS", 240),
		WSRateWindow:        EnvDuration("REVSYNC_WS_RATE_WINDOW", 10*time.Second),

		DatabaseURL:    EnvString("REVSYNC_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("REVSYNC_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("REVSYNC_DB_MIN_CONNS", 0),
		AuditSchema:    EnvString("REVSYNC_AUDIT_SCHEMA", "revsync"),
		AuditQueueSize: EnvInt("REVSYNC_AUDIT_QUEUE", 1024),

		ReadinessRequireDB: EnvBool("REVSYNC_READINESS_REQUIRE_DB", false),

		TenantReapEnabled:  EnvBool("REVSYNC_TENANT_REAP", true),
		TenantIdleWindow:   EnvDuration("REVSYNC_TENANT_IDLE_WINDOW", 30*time.Minute),
		TenantReapInterval: EnvDuration("REVSYNC_TENANT_REAP_INTERVAL", time.Minute),

		JobsMaxLogLines:       EnvInt("REVSYNC_JOBS_MAX_LOG_LINES", 200),
		JobsTerminalRetention: EnvDuration("REVSYNC_JOBS_TERMINAL_RETENTION", 15*time.Minute),
	}
}
