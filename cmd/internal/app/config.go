package app

import (
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	// Environment is "development" or "production". It drives log format
	// and the cookie Secure flag.
	Environment string

	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL empty means the in-memory user store (dev/test mode).
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Environment: normalizeEnvironment(EnvString("HUDDLE_ENV", "development")),

		HTTPAddr: EnvString("HUDDLE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("HUDDLE_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("HUDDLE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("HUDDLE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("HUDDLE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("HUDDLE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("HUDDLE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("HUDDLE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("HUDDLE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("HUDDLE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("HUDDLE_READINESS_REQUIRE_DB", false),
	}
}

// IsDevelopment reports whether the app runs in development mode.
func (c Config) IsDevelopment() bool { return c.Environment == "development" }

func normalizeEnvironment(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}
