package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the identity envelope carried inside issued tokens.
// JTI is set only on refresh tokens; its role is per-issuance entropy for
// fingerprinting, not a replay-list key.
type Claims struct {
	UserID       string
	Email        string
	TokenVersion int
	JTI          string
}

// TokenManager issues and verifies signed access and refresh tokens.
// The two kinds use distinct secrets and TTLs; verifying a token of one kind
// against the other kind's key must fail.
type TokenManager interface {
	IssueAccess(c Claims, now time.Time) (token string, exp time.Time, err error)
	IssueRefresh(c Claims, now time.Time) (token string, exp time.Time, err error)
	VerifyAccess(token string, now time.Time) (Claims, error)
	VerifyRefresh(token string, now time.Time) (Claims, error)
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	TokenVersion int    `json:"token_version"`
}

type jwtManager struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewJWTManager builds a TokenManager signing HS256 JWTs from cfg.
// Missing secrets or non-positive TTLs yield ErrConfig.
func NewJWTManager(cfg Config) (TokenManager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, ErrConfig
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, ErrConfig
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrConfig
	}

	return &jwtManager{
		issuer:        cfg.Issuer,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}, nil
}

func (m *jwtManager) IssueAccess(c Claims, now time.Time) (string, time.Time, error) {
	return m.issue(c, now, m.accessSecret, m.accessTTL, "")
}

func (m *jwtManager) IssueRefresh(c Claims, now time.Time) (string, time.Time, error) {
	// Fresh jti per call so two refresh tokens for the same user never
	// fingerprint identically.
	return m.issue(c, now, m.refreshSecret, m.refreshTTL, uuid.NewString())
}

func (m *jwtManager) issue(c Claims, now time.Time, secret []byte, ttl time.Duration, jti string) (string, time.Time, error) {
	exp := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   c.UserID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:        c.Email,
		TokenVersion: c.TokenVersion,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtManager) VerifyAccess(token string, now time.Time) (Claims, error) {
	return m.verify(token, now, m.accessSecret)
}

func (m *jwtManager) VerifyRefresh(token string, now time.Time) (Claims, error) {
	return m.verify(token, now, m.refreshSecret)
}

func (m *jwtManager) verify(tokenStr string, now time.Time, secret []byte) (Claims, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		UserID:       claims.Subject,
		Email:        claims.Email,
		TokenVersion: claims.TokenVersion,
		JTI:          claims.ID,
	}, nil
}
