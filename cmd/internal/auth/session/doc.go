// Package session implements huddle's authentication and session lifecycle.
//
// It issues signed access/refresh token pairs (JWT HS256, distinct secrets
// and TTLs per kind), verifies presented tokens, rotates refresh tokens with
// reuse detection, throttles brute-force logins with an account lockout, and
// supports token-version based global revocation.
//
// Session state is not held in-process: the identity store is the single
// source of truth and the only synchronization point. Refresh tokens are
// stored only as fingerprints (see cmd/security/fingerprint); the signed
// token itself is never persisted.
package session
