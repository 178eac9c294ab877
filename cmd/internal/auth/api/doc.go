// Package authapi exposes the auth subsystem over HTTP: registration,
// login, refresh rotation, logout, and the authenticated /me view.
//
// Transport policy: tokens travel as httpOnly cookies for browsers and as
// bearer headers for API clients; cookies win when both are present.
package authapi
