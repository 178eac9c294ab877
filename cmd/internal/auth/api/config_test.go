package authapi

import (
	"net/http"
	"testing"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("HUDDLE_AUTH_TRUST_PROXY", "")
	t.Setenv("HUDDLE_AUTH_MAX_BODY_BYTES", "")
	t.Setenv("HUDDLE_COOKIE_SECURE", "")

	cfg := LoadConfigFromEnv("production")

	if cfg.TrustProxy {
		t.Error("TrustProxy default should be false")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 1<<20)
	}
	if cfg.AccessCookieName != "access_token" || cfg.RefreshCookieName != "refresh_token" {
		t.Errorf("cookie names = %q/%q", cfg.AccessCookieName, cfg.RefreshCookieName)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should default to true outside development")
	}
	if cfg.CookieSameSite != http.SameSiteLaxMode {
		t.Errorf("CookieSameSite = %v, want Lax", cfg.CookieSameSite)
	}
}

func TestLoadConfigFromEnvDevelopmentCookies(t *testing.T) {
	t.Setenv("HUDDLE_COOKIE_SECURE", "")

	if cfg := LoadConfigFromEnv("development"); cfg.CookieSecure {
		t.Error("CookieSecure should be false in development")
	}

	// Explicit env wins over the environment-derived default.
	t.Setenv("HUDDLE_COOKIE_SECURE", "true")
	if cfg := LoadConfigFromEnv("development"); !cfg.CookieSecure {
		t.Error("HUDDLE_COOKIE_SECURE=true should force the flag on")
	}
}

func TestLoadConfigFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("HUDDLE_AUTH_TRUST_PROXY", "maybe")
	t.Setenv("HUDDLE_AUTH_MAX_BODY_BYTES", "-5")

	cfg := LoadConfigFromEnv("production")
	if cfg.TrustProxy {
		t.Error("unparsable bool should keep the default")
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want default", cfg.MaxBodyBytes)
	}
}
