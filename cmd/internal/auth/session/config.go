package session

import (
	"crypto/subtle"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// Access and refresh secrets are independent signing keys and must never be
// interchangeable: a token signed for one purpose fails verification against
// the other key. Absent or non-positive values are a fatal configuration
// error at startup, never a per-request failure.
type Config struct {
	// Issuer is the value set in the "iss" claim of issued tokens.
	Issuer string

	// AccessSecret signs short-lived access tokens.
	AccessSecret []byte
	// RefreshSecret signs long-lived refresh tokens.
	RefreshSecret []byte

	// AccessTTL is minutes-scale; RefreshTTL is days-scale.
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Login throttle policy.
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

// DefaultConfig returns defaults suitable for development. Secrets have no
// default and must come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:           "huddle",
		AccessTTL:        15 * time.Minute,
		RefreshTTL:       7 * 24 * time.Hour,
		MaxLoginAttempts: 5,
		LockoutDuration:  15 * time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - HUDDLE_JWT_ACCESS_SECRET
//   - HUDDLE_JWT_REFRESH_SECRET (must differ from the access secret)
//
// Optional (positive integers):
//   - HUDDLE_JWT_ACCESS_TTL_MINUTES
//   - HUDDLE_JWT_REFRESH_TTL_DAYS
//   - HUDDLE_MAX_LOGIN_ATTEMPTS
//   - HUDDLE_LOCKOUT_MINUTES
//   - HUDDLE_AUTH_ISSUER
//
// Returns ErrConfig if configuration is missing or invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("HUDDLE_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	access := strings.TrimSpace(os.Getenv("HUDDLE_JWT_ACCESS_SECRET"))
	refresh := strings.TrimSpace(os.Getenv("HUDDLE_JWT_REFRESH_SECRET"))
	if access == "" || refresh == "" {
		return Config{}, ErrConfig
	}
	if subtle.ConstantTimeCompare([]byte(access), []byte(refresh)) == 1 {
		// Same key for both purposes would defeat the purpose split.
		return Config{}, ErrConfig
	}
	cfg.AccessSecret = []byte(access)
	cfg.RefreshSecret = []byte(refresh)

	if v := os.Getenv("HUDDLE_JWT_ACCESS_TTL_MINUTES"); v != "" {
		n, err := positiveInt(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = time.Duration(n) * time.Minute
	}

	if v := os.Getenv("HUDDLE_JWT_REFRESH_TTL_DAYS"); v != "" {
		n, err := positiveInt(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = time.Duration(n) * 24 * time.Hour
	}

	if v := os.Getenv("HUDDLE_MAX_LOGIN_ATTEMPTS"); v != "" {
		n, err := positiveInt(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.MaxLoginAttempts = n
	}

	if v := os.Getenv("HUDDLE_LOCKOUT_MINUTES"); v != "" {
		n, err := positiveInt(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.LockoutDuration = time.Duration(n) * time.Minute
	}

	return cfg, nil
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, ErrConfig
	}
	return n, nil
}
