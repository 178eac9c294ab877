package session

import (
	"errors"
	"testing"
	"time"
)

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("HUDDLE_JWT_ACCESS_SECRET", "test-access-secret")
	t.Setenv("HUDDLE_JWT_REFRESH_SECRET", "test-refresh-secret")
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	setRequiredSecrets(t)

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.Issuer != "huddle" {
		t.Errorf("Issuer = %q, want %q", cfg.Issuer, "huddle")
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.RefreshTTL)
	}
	if cfg.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts = %d, want 5", cfg.MaxLoginAttempts)
	}
	if cfg.LockoutDuration != 15*time.Minute {
		t.Errorf("LockoutDuration = %v, want 15m", cfg.LockoutDuration)
	}
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("HUDDLE_AUTH_ISSUER", "huddle-test")
	t.Setenv("HUDDLE_JWT_ACCESS_TTL_MINUTES", "5")
	t.Setenv("HUDDLE_JWT_REFRESH_TTL_DAYS", "30")
	t.Setenv("HUDDLE_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("HUDDLE_LOCKOUT_MINUTES", "60")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.Issuer != "huddle-test" {
		t.Errorf("Issuer = %q, want %q", cfg.Issuer, "huddle-test")
	}
	if cfg.AccessTTL != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want 5m", cfg.AccessTTL)
	}
	if cfg.RefreshTTL != 30*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 720h", cfg.RefreshTTL)
	}
	if cfg.MaxLoginAttempts != 3 {
		t.Errorf("MaxLoginAttempts = %d, want 3", cfg.MaxLoginAttempts)
	}
	if cfg.LockoutDuration != time.Hour {
		t.Errorf("LockoutDuration = %v, want 1h", cfg.LockoutDuration)
	}
}

func TestLoadConfigFromEnvMissingSecrets(t *testing.T) {
	t.Setenv("HUDDLE_JWT_ACCESS_SECRET", "")
	t.Setenv("HUDDLE_JWT_REFRESH_SECRET", "only-refresh")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing access secret: err = %v, want ErrConfig", err)
	}

	t.Setenv("HUDDLE_JWT_ACCESS_SECRET", "only-access")
	t.Setenv("HUDDLE_JWT_REFRESH_SECRET", "")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing refresh secret: err = %v, want ErrConfig", err)
	}
}

func TestLoadConfigFromEnvEqualSecrets(t *testing.T) {
	t.Setenv("HUDDLE_JWT_ACCESS_SECRET", "same-secret")
	t.Setenv("HUDDLE_JWT_REFRESH_SECRET", "same-secret")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("equal secrets: err = %v, want ErrConfig", err)
	}
}

func TestLoadConfigFromEnvBadNumbers(t *testing.T) {
	cases := []struct {
		key, val string
	}{
		{"HUDDLE_JWT_ACCESS_TTL_MINUTES", "zero"},
		{"HUDDLE_JWT_ACCESS_TTL_MINUTES", "0"},
		{"HUDDLE_JWT_REFRESH_TTL_DAYS", "-7"},
		{"HUDDLE_MAX_LOGIN_ATTEMPTS", "0"},
		{"HUDDLE_LOCKOUT_MINUTES", "15m"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			setRequiredSecrets(t)
			t.Setenv(tc.key, tc.val)

			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
		})
	}
}
