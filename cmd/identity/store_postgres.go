package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted.
//   - Every mutating operation is a single UPDATE, so the atomicity
//     promises of the Store contract hold without explicit transactions:
//     the compare-and-swap lives in the WHERE clause and the failure
//     counter increments server-side.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "huddle").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "huddle"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, email, username, password_hash,
	coalesce(refresh_token_hash, ''), token_version,
	failed_login_attempts, locked_until, created_at`

func (s *PostgresStore) users() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

func (s *PostgresStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"

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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (
		     id, email, username, password_hash, token_version,
		     failed_login_attempts, created_at
		   ) VALUES ($1, $2, $3, $4, 0, 0, $5)`,
		id, in.Email, in.Username, in.PasswordHash, now,
	)
	if err != nil {
		if field, ok := classifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	return User{
		ID:           id,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		TokenVersion: 0,
		CreatedAt:    now,
	}, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.getBy(ctx, "identity.GetByID", `id = $1`, id)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getBy(ctx, "identity.GetByEmail", `email = $1`, email)
}

func (s *PostgresStore) getBy(ctx context.Context, op, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` WHERE `+where, arg,
	).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&u.RefreshTokenHash, &u.TokenVersion,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) SetRefreshFingerprint(ctx context.Context, id, digest string) error {
	return s.exec(ctx, "identity.SetRefreshFingerprint", id,
		`UPDATE `+s.users()+` SET refresh_token_hash = $2 WHERE id = $1`,
		id, digest,
	)
}

func (s *PostgresStore) SwapRefreshFingerprint(ctx context.Context, id, old, next string) (bool, error) {
	const op = "identity.SwapRefreshFingerprint"

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+`
		    SET refresh_token_hash = $3
		  WHERE id = $1 AND coalesce(refresh_token_hash, '') = $2`,
		id, old, next,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ClearRefreshFingerprint(ctx context.Context, id string) error {
	// No row-count check: clearing a missing or already-clear user stays
	// idempotent.
	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+` SET refresh_token_hash = NULL WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("identity.ClearRefreshFingerprint: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkLoginSuccess(ctx context.Context, id, digest string) error {
	return s.exec(ctx, "identity.MarkLoginSuccess", id,
		`UPDATE `+s.users()+`
		    SET refresh_token_hash = $2,
		        failed_login_attempts = 0,
		        locked_until = NULL
		  WHERE id = $1`,
		id, digest,
	)
}

func (s *PostgresStore) RecordLoginFailure(ctx context.Context, id string, now time.Time, maxAttempts int, lockFor time.Duration) (int, *time.Time, error) {
	const op = "identity.RecordLoginFailure"

	var attempts int
	var lockedUntil *time.Time
	err := s.pool.QueryRow(ctx,
		`UPDATE `+s.users()+`
		    SET failed_login_attempts = failed_login_attempts + 1,
		        locked_until = CASE
		            WHEN failed_login_attempts + 1 >= $2 THEN $3
		            ELSE locked_until
		        END
		  WHERE id = $1
		  RETURNING failed_login_attempts, locked_until`,
		id, maxAttempts, now.Add(lockFor),
	).Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, NotFoundError{Op: op, ID: id}
		}
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	return attempts, lockedUntil, nil
}

func (s *PostgresStore) ResetLockout(ctx context.Context, id string) error {
	return s.exec(ctx, "identity.ResetLockout", id,
		`UPDATE `+s.users()+`
		    SET failed_login_attempts = 0, locked_until = NULL
		  WHERE id = $1`,
		id,
	)
}

func (s *PostgresStore) RevokeAll(ctx context.Context, id string) error {
	return s.exec(ctx, "identity.RevokeAll", id,
		`UPDATE `+s.users()+`
		    SET token_version = token_version + 1,
		        refresh_token_hash = NULL
		  WHERE id = $1`,
		id,
	)
}

func (s *PostgresStore) exec(ctx context.Context, op, id, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, ID: id}
	}
	return nil
}

func classifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case strings.Contains(c, "email"):
		return "email", true
	case strings.Contains(c, "username"):
		return "username", true
	default:
		return "unique", true
	}
}
