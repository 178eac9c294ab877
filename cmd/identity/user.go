package identity

import (
	"context"
	"time"
)

// User is huddle's canonical security principal.
//
// RefreshTokenHash holds the fingerprint of the single currently-valid
// refresh token, or "" when the user has no active session. A new login or
// refresh overwrites it, which silently invalidates any previously issued
// refresh token for the user.
type User struct {
	ID       string
	Email    string
	Username string

	// PasswordHash is the Argon2id PHC string; never the raw password.
	PasswordHash string

	RefreshTokenHash string

	// TokenVersion is the global revocation switch: tokens minted with a
	// stale version are rejected regardless of signature validity.
	TokenVersion int

	FailedLoginAttempts int
	LockedUntil         *time.Time

	CreatedAt time.Time
}

// CreateUserInput describes a registration request. Email must already be
// normalized by the caller.
type CreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
	Now          time.Time
}

// Store is the user persistence boundary.
//
// All mutating operations are atomic single-row updates. The two operations
// that matter under concurrency are explicit about it:
//
//   - SwapRefreshFingerprint is a compare-and-swap keyed on the old
//     fingerprint, so two concurrent rotations of the same refresh token
//     cannot both succeed.
//   - RecordLoginFailure increments the failure counter at the store level,
//     so two concurrent failed logins cannot under-count, and sets the lock
//     timestamp in the same update that reaches the threshold.
type Store interface {
	// Create inserts a new user with TokenVersion 0 and no lockout state.
	// A duplicate email yields a ConflictError.
	Create(ctx context.Context, in CreateUserInput) (User, error)

	// GetByID loads a user by id; missing users yield a NotFoundError.
	GetByID(ctx context.Context, id string) (User, error)

	// GetByEmail loads a user by normalized email.
	GetByEmail(ctx context.Context, email string) (User, error)

	// SetRefreshFingerprint unconditionally stores digest as the user's
	// refresh fingerprint (used at registration, where no prior session
	// can exist).
	SetRefreshFingerprint(ctx context.Context, id, digest string) error

	// SwapRefreshFingerprint replaces the stored fingerprint with next only
	// if it currently equals old. Returns false when the guard failed,
	// which callers treat as a rotation race / replay signal.
	SwapRefreshFingerprint(ctx context.Context, id, old, next string) (bool, error)

	// ClearRefreshFingerprint removes any stored fingerprint. Idempotent:
	// clearing an already-clear user is not an error.
	ClearRefreshFingerprint(ctx context.Context, id string) error

	// MarkLoginSuccess stores the new refresh fingerprint and resets
	// FailedLoginAttempts/LockedUntil in the same update.
	MarkLoginSuccess(ctx context.Context, id, digest string) error

	// RecordLoginFailure atomically increments FailedLoginAttempts and, when
	// the incremented value reaches maxAttempts, sets LockedUntil to
	// now.Add(lockFor) in the same update. Returns the post-increment
	// counter and the effective lock timestamp, if any.
	RecordLoginFailure(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (attempts int, lockedUntil *time.Time, err error)

	// ResetLockout clears FailedLoginAttempts and LockedUntil in one update
	// (used when an expired lock is detected).
	ResetLockout(ctx context.Context, id string) error

	// RevokeAll bumps TokenVersion and clears the refresh fingerprint in one
	// update, invalidating every outstanding token for the user.
	RevokeAll(ctx context.Context, id string) error
}
