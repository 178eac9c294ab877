package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and cookie defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	AccessCookieName  string
	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults. environment is the deployment environment string
// ("development" disables the Secure cookie flag so plain-http local setups
// keep working).
func LoadConfigFromEnv(environment string) Config {
	cfg := Config{
		TrustProxy:        envBool("HUDDLE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("HUDDLE_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		AccessCookieName:  "access_token",
		RefreshCookieName: "refresh_token",
		CookiePath:        "/",
		CookieDomain:      strings.TrimSpace(os.Getenv("HUDDLE_COOKIE_DOMAIN")),
		CookieSecure:      envBool("HUDDLE_COOKIE_SECURE", environment != "development"),
		CookieSameSite:    http.SameSiteLaxMode,
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
