package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for a bad password or an unknown
	// email. The two cases are intentionally indistinguishable to the
	// caller.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken is returned when a presented token fails verification
	// or refers to no active session.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when a presented token is past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned when a token carries a stale token version.
	ErrTokenRevoked = errors.New("token has been revoked")

	// ErrReplayDetected is returned when an already-rotated refresh token is
	// presented again. The session is forcibly terminated before this error
	// is returned; treat it as a security event, not an ordinary auth
	// failure.
	ErrReplayDetected = errors.New("refresh token reuse detected")

	// ErrAccountLocked is returned while a login lockout is in effect.
	ErrAccountLocked = errors.New("account locked")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// ReplayCode is the machine-readable code carried alongside ErrReplayDetected
// on the wire.
const ReplayCode = "REFRESH_REUSE_DETECTED"

// AccountLockedError carries the remaining lockout duration.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e AccountLockedError) Error() string {
	mins := int(e.RetryAfter.Minutes())
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%s: try again in %d minute(s)", ErrAccountLocked.Error(), mins)
}

func (e AccountLockedError) Unwrap() error { return ErrAccountLocked }
