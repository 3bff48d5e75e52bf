package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | pretty

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64

	// Empty DatabaseURL selects the in-memory stores.
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	DBSchema      string
	DBAutoMigrate bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// Per-IP limit on /api/register and /api/login.
	AuthRateLimit  int
	AuthRateWindow time.Duration

	NearbyDefaultRadiusM int
	NearbyMaxRadiusM     int
	NearbyRadiusStrict   bool

	// Cell size of the in-memory spatial index.
	MemoryGridCellM int

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("NEARME_HTTP_ADDR", "0.0.0.0:3000"),
		LogLevel:  EnvString("NEARME_LOG_LEVEL", "info"),
		LogFormat: EnvString("NEARME_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("NEARME_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("NEARME_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("NEARME_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("NEARME_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("NEARME_HTTP_MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:   EnvInt64("NEARME_MAX_BODY_BYTES", 1<<20),

		DatabaseURL:   EnvString("NEARME_DATABASE_URL", ""),
		DBMaxConns:    EnvInt32("NEARME_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("NEARME_DB_MIN_CONNS", 0),
		DBSchema:      EnvString("NEARME_DB_SCHEMA", "nearme"),
		DBAutoMigrate: EnvBool("NEARME_DB_AUTO_MIGRATE", true),

		ReadinessRequireDB: EnvBool("NEARME_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvList("NEARME_CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowCredentials: EnvBool("NEARME_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("NEARME_CORS_MAX_AGE_SECONDS", 300),

		AuthRateLimit:  EnvInt("NEARME_AUTH_RATE_LIMIT", 20),
		AuthRateWindow: EnvDuration("NEARME_AUTH_RATE_WINDOW", time.Minute),

		NearbyDefaultRadiusM: EnvInt("NEARME_NEARBY_DEFAULT_RADIUS_M", 5000),
		NearbyMaxRadiusM:     EnvInt("NEARME_NEARBY_MAX_RADIUS_M", 100000),
		NearbyRadiusStrict:   EnvBool("NEARME_NEARBY_RADIUS_STRICT", false),

		MemoryGridCellM: EnvInt("NEARME_MEMORY_GRID_CELL_M", 2000),

		MetricsEnabled: EnvBool("NEARME_METRICS_ENABLED", true),
	}
}
