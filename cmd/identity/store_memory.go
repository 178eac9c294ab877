package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded Store used when no database is configured
// (dev mode) and in tests. All operations hold the lock for their full
// duration, which gives the same atomic single-row semantics as the
// Postgres implementation.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[string]*User // by id
	byEmail map[string]string // normalized email -> id
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if in.Email == "" || in.PasswordHash == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and password hash are required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[in.Email]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := &User{
		ID:           id,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		TokenVersion: 0,
		CreatedAt:    now,
	}
	s.users[id] = u
	s.byEmail[in.Email] = id

	return *u, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetByID", ID: id}
	}
	return *u, nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetByEmail"}
	}
	return *s.users[id], nil
}

func (s *MemoryStore) SetRefreshFingerprint(ctx context.Context, id, digest string) error {
	return s.update(ctx, "identity.SetRefreshFingerprint", id, func(u *User) {
		u.RefreshTokenHash = digest
	})
}

func (s *MemoryStore) SwapRefreshFingerprint(ctx context.Context, id, old, next string) (bool, error) {
	swapped := false
	err := s.update(ctx, "identity.SwapRefreshFingerprint", id, func(u *User) {
		if u.RefreshTokenHash == old {
			u.RefreshTokenHash = next
			swapped = true
		}
	})
	return swapped, err
}

func (s *MemoryStore) ClearRefreshFingerprint(ctx context.Context, id string) error {
	return s.update(ctx, "identity.ClearRefreshFingerprint", id, func(u *User) {
		u.RefreshTokenHash = ""
	})
}

func (s *MemoryStore) MarkLoginSuccess(ctx context.Context, id, digest string) error {
	return s.update(ctx, "identity.MarkLoginSuccess", id, func(u *User) {
		u.RefreshTokenHash = digest
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (s *MemoryStore) RecordLoginFailure(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (int, *time.Time, error) {
	var attempts int
	var lockedUntil *time.Time

	err := s.update(ctx, "identity.RecordLoginFailure", id, func(u *User) {
		u.FailedLoginAttempts++
		if maxAttempts > 0 && u.FailedLoginAttempts >= maxAttempts {
			until := now.Add(lockFor)
			u.LockedUntil = &until
		}
		attempts = u.FailedLoginAttempts
		lockedUntil = copyTimePtr(u.LockedUntil)
	})
	return attempts, lockedUntil, err
}

func (s *MemoryStore) ResetLockout(ctx context.Context, id string) error {
	return s.update(ctx, "identity.ResetLockout", id, func(u *User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (s *MemoryStore) RevokeAll(ctx context.Context, id string) error {
	return s.update(ctx, "identity.RevokeAll", id, func(u *User) {
		u.TokenVersion++
		u.RefreshTokenHash = ""
	})
}

func (s *MemoryStore) update(ctx context.Context, op, id string, fn func(*User)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return NotFoundError{Op: op, ID: id}
	}
	fn(u)
	return nil
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
