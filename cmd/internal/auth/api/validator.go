package authapi

import (
	"net/http"
	"time"

	"huddle/cmd/internal/auth/session"
)

// RequestValidator authenticates an inbound HTTP request and yields the
// identity it carries. Implementations decide which token kind they accept
// and where on the request they look for it.
type RequestValidator interface {
	Validate(r *http.Request, now time.Time) (session.Identity, error)
}

// AccessValidator authenticates requests by access token (cookie first,
// bearer fallback).
type AccessValidator struct {
	Sessions   *session.Service
	CookieName string
}

func (v AccessValidator) Validate(r *http.Request, now time.Time) (session.Identity, error) {
	token := tokenFromRequest(r, v.CookieName)
	if token == "" {
		return session.Identity{}, session.ErrInvalidToken
	}
	return v.Sessions.ValidateAccessToken(r.Context(), token, now)
}

// RefreshValidator authenticates requests by refresh token. Beyond signature
// checks it enforces the fingerprint match, so a rotated-away token surfaces
// as session.ErrReplayDetected here.
type RefreshValidator struct {
	Sessions   *session.Service
	CookieName string
}

func (v RefreshValidator) Validate(r *http.Request, now time.Time) (session.Identity, error) {
	token := tokenFromRequest(r, v.CookieName)
	if token == "" {
		return session.Identity{}, session.ErrInvalidToken
	}
	return v.Sessions.ValidateRefreshToken(r.Context(), token, now)
}
