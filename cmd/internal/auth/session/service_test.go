package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"huddle/cmd/identity"
	"huddle/cmd/security/fingerprint"
	"huddle/cmd/security/password"
)

// testPasswordConfig keeps Argon2 cost low so the suite stays fast.
func testPasswordConfig() password.Config {
	return password.Config{
		Params: password.Params{
			MemoryKiB:   8 * 1024,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: password.Policy{MinLength: 8, MaxLength: 256},
	}
}

func newTestService(t *testing.T) (*Service, *identity.MemoryStore) {
	t.Helper()

	cfg := testTokenConfig()
	tm, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	store := identity.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(cfg, store, tm, testPasswordConfig(), fingerprint.New(nil), log)
	return svc, store
}

func mustRegister(t *testing.T, svc *Service, now time.Time, email, pw string) (identity.User, TokenPair) {
	t.Helper()
	u, pair, err := svc.Register(context.Background(), now, email, "tester", pw)
	if err != nil {
		t.Fatalf("Register(%q): %v", email, err)
	}
	return u, pair
}

func TestRegisterIssuesWorkingTokens(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	u, pair := mustRegister(t, svc, now, "Ada@Example.com", "Passw0rd")
	if u.Email != "ada@example.com" {
		t.Errorf("stored email = %q, want normalized", u.Email)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("register returned empty tokens")
	}

	ident, err := svc.ValidateAccessToken(ctx, pair.AccessToken, now)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if ident.UserID != u.ID {
		t.Errorf("identity.UserID = %q, want %q", ident.UserID, u.ID)
	}

	if _, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now); err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()

	mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	_, _, err := svc.Register(context.Background(), now, "ADA@example.com", "other", "Passw0rd")
	if !identity.IsConflict(err) {
		t.Fatalf("duplicate register: err = %v, want conflict", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Register(context.Background(), time.Now(), "ada@example.com", "ada", "short")
	if !errors.Is(err, password.ErrPasswordTooShort) {
		t.Fatalf("short password: err = %v, want ErrPasswordTooShort", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.Login(context.Background(), time.Now(), "nobody@example.com", "Passw0rd")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginWrongThenRightResetsCounter(t *testing.T) {
	svc, store := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	u, _ := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	for i := 0; i < 4; i++ {
		if _, _, err := svc.Login(ctx, now, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	if _, _, err := svc.Login(ctx, now, "ada@example.com", "Passw0rd"); err != nil {
		t.Fatalf("correct login after 4 failures: %v", err)
	}

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FailedLoginAttempts != 0 || got.LockedUntil != nil {
		t.Errorf("counter not reset: attempts=%d locked=%v", got.FailedLoginAttempts, got.LockedUntil)
	}

	// The slate is clean: one more wrong password is failure #1, not #5.
	if _, _, err := svc.Login(ctx, now, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("post-reset failure: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginLockoutLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	for i := 0; i < 4; i++ {
		if _, _, err := svc.Login(ctx, now, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// Fifth failure crosses the threshold and reports the lockout.
	_, _, err := svc.Login(ctx, now, "ada@example.com", "wrong-password")
	var locked AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("attempt 5: err = %v, want AccountLockedError", err)
	}
	if locked.RetryAfter <= 0 || locked.RetryAfter > 15*time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, 15m]", locked.RetryAfter)
	}

	// The correct password is rejected with the lockout error while the
	// window is in effect.
	_, _, err = svc.Login(ctx, now.Add(time.Minute), "ada@example.com", "Passw0rd")
	if !errors.As(err, &locked) {
		t.Fatalf("correct password while locked: err = %v, want AccountLockedError", err)
	}

	// After expiry, login proceeds normally.
	after := now.Add(15*time.Minute + time.Second)
	if _, _, err := svc.Login(ctx, after, "ada@example.com", "Passw0rd"); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}

	// And a single wrong password after expiry is failure #1, not grounds
	// for an immediate re-lock.
	if _, _, err := svc.Login(ctx, after, "ada@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("post-expiry failure: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshRotationAndReplay(t *testing.T) {
	svc, store := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	u, pair := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	ident, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
	next, err := svc.Refresh(ctx, now, ident, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh did not rotate the token")
	}

	// Presenting the rotated-away token is a replay: the whole session is
	// terminated.
	if _, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("replayed token: err = %v, want ErrReplayDetected", err)
	}

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RefreshTokenHash != "" {
		t.Error("fingerprint not cleared after replay detection")
	}

	// The new token the attacker never saw is dead too.
	if _, err := svc.ValidateRefreshToken(ctx, next.RefreshToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("post-replay legitimate token: err = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshCASLoserIsReplay(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	_, pair := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	ident, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}

	// Two rotations of the same presented token: the second lost the
	// fingerprint swap and must be treated as replay even though its
	// validation snapshot predated the first rotation.
	if _, err := svc.Refresh(ctx, now, ident, pair.RefreshToken); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if _, err := svc.Refresh(ctx, now, ident, pair.RefreshToken); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("second Refresh: err = %v, want ErrReplayDetected", err)
	}
}

func TestLoginInvalidatesPreviousSession(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	_, first := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	_, second, err := svc.Login(ctx, now, "ada@example.com", "Passw0rd")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Single active session: the earlier refresh token no longer matches
	// the stored fingerprint.
	if _, err := svc.ValidateRefreshToken(ctx, first.RefreshToken, now); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("stale session token: err = %v, want ErrReplayDetected", err)
	}
	// Replay handling cleared the fingerprint, so even the new session is
	// gone; this is the defensive trade-off of single-session fingerprints.
	if _, err := svc.ValidateRefreshToken(ctx, second.RefreshToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("second session after replay: err = %v, want ErrInvalidToken", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	u, pair := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")
	ident := Identity{UserID: u.ID, Email: u.Email}

	if err := svc.Logout(ctx, ident); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := svc.Logout(ctx, ident); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := svc.Logout(ctx, Identity{UserID: "no-such-user"}); err != nil {
		t.Fatalf("Logout of unknown user: %v", err)
	}

	// The refresh token no longer refers to an active session, but since
	// nothing is stored there is no replay signal either.
	if _, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after logout: err = %v, want ErrInvalidToken", err)
	}

	// Access tokens survive logout until expiry; only RevokeAll kills them.
	if _, err := svc.ValidateAccessToken(ctx, pair.AccessToken, now); err != nil {
		t.Fatalf("access after logout: %v", err)
	}
}

func TestRevokeAllInvalidatesEverything(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	u, pair := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")
	ident := Identity{UserID: u.ID, Email: u.Email}

	if err := svc.RevokeAll(ctx, ident); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, pair.AccessToken, now); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("access after revoke-all: err = %v, want ErrTokenRevoked", err)
	}
	if _, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after revoke-all: err = %v, want ErrInvalidToken", err)
	}

	// A fresh login works and mints tokens with the new version.
	_, next, err := svc.Login(ctx, now, "ada@example.com", "Passw0rd")
	if err != nil {
		t.Fatalf("login after revoke-all: %v", err)
	}
	if _, err := svc.ValidateAccessToken(ctx, next.AccessToken, now); err != nil {
		t.Fatalf("new access after revoke-all: %v", err)
	}
}

func TestValidateRefreshTokenStaleVersion(t *testing.T) {
	svc, store := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	u, pair := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	// Bump the version, then restore the fingerprint so the presented token
	// still matches the stored digest. The version check must win over the
	// fingerprint match.
	if err := store.RevokeAll(ctx, u.ID); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if err := store.SetRefreshFingerprint(ctx, u.ID, fingerprint.New(nil).Digest(pair.RefreshToken)); err != nil {
		t.Fatalf("SetRefreshFingerprint: %v", err)
	}

	if _, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("stale version: err = %v, want ErrTokenRevoked", err)
	}

	got, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	// A stale version is revocation, not replay: the fingerprint stays.
	if got.RefreshTokenHash == "" {
		t.Error("fingerprint cleared on version mismatch")
	}
}

func TestValidateAccessTokenErrors(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	_, pair := mustRegister(t, svc, now, "ada@example.com", "Passw0rd")

	if _, err := svc.ValidateAccessToken(ctx, "garbage", now); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: err = %v, want ErrInvalidToken", err)
	}
	if _, err := svc.ValidateAccessToken(ctx, pair.AccessToken, now.Add(16*time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expired: err = %v, want ErrTokenExpired", err)
	}
	if _, err := svc.ValidateAccessToken(ctx, pair.RefreshToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh as access: err = %v, want ErrInvalidToken", err)
	}
}

func TestEndToEndSessionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	now := time.Now()
	ctx := context.Background()

	u, pair := mustRegister(t, svc, now, "e2e@example.com", "Passw0rd")

	_, loginPair, err := svc.Login(ctx, now, "e2e@example.com", "Passw0rd")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	ident, err := svc.ValidateRefreshToken(ctx, loginPair.RefreshToken, now)
	if err != nil {
		t.Fatalf("ValidateRefreshToken: %v", err)
	}
	rotated, err := svc.Refresh(ctx, now, ident, loginPair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	ident, err = svc.ValidateAccessToken(ctx, rotated.AccessToken, now)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if ident.UserID != u.ID {
		t.Errorf("identity.UserID = %q, want %q", ident.UserID, u.ID)
	}

	got, err := svc.GetUser(ctx, ident)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "e2e@example.com" {
		t.Errorf("GetUser email = %q", got.Email)
	}

	// The registration-era refresh token was superseded by login, and the
	// login-era token by the rotation; both are dead.
	if _, err := svc.ValidateRefreshToken(ctx, pair.RefreshToken, now); err == nil {
		t.Error("registration-era refresh token still valid")
	}
}
