// Package fingerprint digests refresh-token secrets for server-side storage.
//
// Refresh tokens are high-entropy random values, so an adaptive-cost hash
// would buy nothing and would tax every authenticated request. A fast
// deterministic digest is enough: the server stores only the digest and
// recomputes it on presentation.
//
// Two modes, selected by construction:
//   - plain SHA-256 (dev/back-compat)
//   - HMAC-SHA256 when a key is configured (HUDDLE_TOKEN_HMAC_KEY)
//
// Output is always a 64-char hex string. Comparison is constant-time and a
// stored digest of the wrong length or shape simply compares false.
package fingerprint
