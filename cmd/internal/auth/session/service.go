package session

import (
	"context"
	"log/slog"
	"time"

	"huddle/cmd/identity"
	"huddle/cmd/security/fingerprint"
	"huddle/cmd/security/password"
)

// Service implements the high-level auth operations for huddle:
// register, login (with lockout throttling), refresh rotation with reuse
// detection, logout, and token validation for inbound requests.
//
// All session state lives in the identity store; Service itself is
// stateless and safe for concurrent use.
type Service struct {
	cfg       Config
	store     identity.Store
	tokens    TokenManager
	passwords password.Config
	prints    fingerprint.Fingerprinter
	log       *slog.Logger

	// dummyHash absorbs password verification time when the email is
	// unknown, so login latency does not reveal account existence.
	dummyHash string
}

// TokenPair is the result of issuing or rotating a session.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Identity is the authenticated principal produced by token validation and
// threaded as an ordinary parameter through the call chain.
type Identity struct {
	UserID       string
	Email        string
	TokenVersion int
}

// NewService constructs a Service.
func NewService(cfg Config, store identity.Store, tokens TokenManager, passwords password.Config, prints fingerprint.Fingerprinter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:       cfg,
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		prints:    prints,
		log:       log,
	}

	if h, err := passwords.Hash("dummy-password-for-timing-only"); err == nil {
		s.dummyHash = h
	}

	return s
}

// Register creates a new user, issues a token pair, and stores the refresh
// fingerprint. A user with the same email yields identity.ErrConflict;
// password policy violations surface as password package errors.
func (s *Service) Register(ctx context.Context, now time.Time, email, username, pw string) (identity.User, TokenPair, error) {
	email = identity.NormalizeEmail(email)

	// Friendly early check; the store's uniqueness guarantee still
	// backstops concurrent registrations.
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return identity.User{}, TokenPair{}, identity.ConflictError{Op: "session.Register", Field: "email"}
	} else if !identity.IsNotFound(err) {
		return identity.User{}, TokenPair{}, err
	}

	hash, err := s.passwords.Hash(pw)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}

	u, err := s.store.Create(ctx, identity.CreateUserInput{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Now:          now,
	})
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}

	pair, err := s.issuePair(u, now)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}
	if err := s.store.SetRefreshFingerprint(ctx, u.ID, s.prints.Digest(pair.RefreshToken)); err != nil {
		return identity.User{}, TokenPair{}, err
	}

	s.log.Info("auth.register", "user_id", u.ID)
	return u, pair, nil
}

// Login verifies credentials under the lockout policy and, on success,
// issues a token pair and stores the new refresh fingerprint, silently
// invalidating any other active session for the account.
func (s *Service) Login(ctx context.Context, now time.Time, email, pw string) (identity.User, TokenPair, error) {
	u, err := s.store.GetByEmail(ctx, identity.NormalizeEmail(email))
	if err != nil {
		if identity.IsNotFound(err) {
			// Timing resistance: burn a verification on a dummy hash so
			// unknown emails cost the same as bad passwords.
			if s.dummyHash != "" {
				s.passwords.Compare(pw, s.dummyHash)
			}
			return identity.User{}, TokenPair{}, ErrInvalidCredentials
		}
		return identity.User{}, TokenPair{}, err
	}

	if u.LockedUntil != nil {
		if u.LockedUntil.After(now) {
			// Active lock: the password is not consulted at all.
			return identity.User{}, TokenPair{}, AccountLockedError{RetryAfter: u.LockedUntil.Sub(now)}
		}
		// Expired lock: reset counters first, then verify normally.
		if err := s.store.ResetLockout(ctx, u.ID); err != nil {
			return identity.User{}, TokenPair{}, err
		}
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	}

	if !s.passwords.Compare(pw, u.PasswordHash) {
		attempts, lockedUntil, err := s.store.RecordLoginFailure(ctx, u.ID, now, s.cfg.MaxLoginAttempts, s.cfg.LockoutDuration)
		if err != nil {
			return identity.User{}, TokenPair{}, err
		}
		if lockedUntil != nil && attempts == s.cfg.MaxLoginAttempts {
			// Threshold just crossed: report the lockout rather than the
			// generic failure.
			s.log.Warn("auth.login.lockout", "user_id", u.ID, "attempts", attempts)
			return identity.User{}, TokenPair{}, AccountLockedError{RetryAfter: lockedUntil.Sub(now)}
		}
		return identity.User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(u, now)
	if err != nil {
		return identity.User{}, TokenPair{}, err
	}
	// Fingerprint storage and counter reset happen in the same update.
	if err := s.store.MarkLoginSuccess(ctx, u.ID, s.prints.Digest(pair.RefreshToken)); err != nil {
		return identity.User{}, TokenPair{}, err
	}

	s.log.Info("auth.login.success", "user_id", u.ID)
	return u, pair, nil
}

// Refresh issues a fresh token pair for an identity already validated by
// ValidateRefreshToken, rotating the stored fingerprint away from the
// presented token.
//
// The rotation is a compare-and-swap keyed on the presented token's
// fingerprint: of two concurrent refreshes with the same token, exactly one
// wins; the loser is handled as replay (forced logout + ErrReplayDetected).
func (s *Service) Refresh(ctx context.Context, now time.Time, ident Identity, presented string) (TokenPair, error) {
	u, err := s.store.GetByID(ctx, ident.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}

	pair, err := s.issuePair(u, now)
	if err != nil {
		return TokenPair{}, err
	}

	swapped, err := s.store.SwapRefreshFingerprint(ctx, u.ID, s.prints.Digest(presented), s.prints.Digest(pair.RefreshToken))
	if err != nil {
		return TokenPair{}, err
	}
	if !swapped {
		return TokenPair{}, s.replayDetected(ctx, u.ID)
	}

	s.log.Info("auth.refresh.success", "user_id", u.ID)
	return pair, nil
}

// Logout clears the user's stored refresh fingerprint. Idempotent: logging
// out twice, or with no active session, is not an error.
func (s *Service) Logout(ctx context.Context, ident Identity) error {
	if err := s.store.ClearRefreshFingerprint(ctx, ident.UserID); err != nil && !identity.IsNotFound(err) {
		return err
	}
	s.log.Info("auth.logout", "user_id", ident.UserID)
	return nil
}

// RevokeAll bumps the user's token version, immediately invalidating every
// outstanding token for the account, and clears the stored fingerprint.
func (s *Service) RevokeAll(ctx context.Context, ident Identity) error {
	if err := s.store.RevokeAll(ctx, ident.UserID); err != nil {
		return err
	}
	s.log.Info("auth.logout_all", "user_id", ident.UserID)
	return nil
}

// GetUser loads the user record for an authenticated identity.
func (s *Service) GetUser(ctx context.Context, ident Identity) (identity.User, error) {
	return s.store.GetByID(ctx, ident.UserID)
}

// ValidateAccessToken verifies an access token and produces the
// authenticated identity.
//
// Policy (server-authoritative): the token version is re-checked against the
// record on every validation, so a version bump revokes outstanding access
// tokens immediately at the cost of one store lookup per request.
func (s *Service) ValidateAccessToken(ctx context.Context, token string, now time.Time) (Identity, error) {
	claims, err := s.tokens.VerifyAccess(token, now)
	if err != nil {
		return Identity{}, err
	}

	u, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if claims.TokenVersion != u.TokenVersion {
		return Identity{}, ErrTokenRevoked
	}

	return Identity{UserID: u.ID, Email: u.Email, TokenVersion: u.TokenVersion}, nil
}

// ValidateRefreshToken verifies a refresh token and produces the
// authenticated identity for the refresh flow.
//
// Beyond signature and expiry it requires, in order: a jti claim, an
// existing user with an active session, a current token version, and a
// fingerprint match against the stored digest. A fingerprint mismatch means
// the token was already rotated away — a reuse/replay signal: the session
// is forcibly terminated everywhere and ErrReplayDetected is returned.
func (s *Service) ValidateRefreshToken(ctx context.Context, token string, now time.Time) (Identity, error) {
	claims, err := s.tokens.VerifyRefresh(token, now)
	if err != nil {
		return Identity{}, err
	}
	if claims.JTI == "" {
		return Identity{}, ErrInvalidToken
	}

	u, err := s.store.GetByID(ctx, claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, err
	}
	if u.RefreshTokenHash == "" {
		return Identity{}, ErrInvalidToken
	}
	if claims.TokenVersion != u.TokenVersion {
		return Identity{}, ErrTokenRevoked
	}

	if !s.prints.Compare(token, u.RefreshTokenHash) {
		return Identity{}, s.replayDetected(ctx, u.ID)
	}

	return Identity{UserID: u.ID, Email: u.Email, TokenVersion: u.TokenVersion}, nil
}

// replayDetected forcibly logs the account out everywhere and returns
// ErrReplayDetected. The clear is best-effort: the error is returned even
// if the store update fails, and the event is always logged.
func (s *Service) replayDetected(ctx context.Context, userID string) error {
	if err := s.store.ClearRefreshFingerprint(ctx, userID); err != nil {
		s.log.Error("auth.refresh.reuse_cleanup.fail", "err", err, "user_id", userID)
	}
	s.log.Warn("auth.refresh.reuse_detected", "user_id", userID)
	return ErrReplayDetected
}

func (s *Service) issuePair(u identity.User, now time.Time) (TokenPair, error) {
	c := Claims{UserID: u.ID, Email: u.Email, TokenVersion: u.TokenVersion}

	access, accessExp, err := s.tokens.IssueAccess(c, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(c, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
