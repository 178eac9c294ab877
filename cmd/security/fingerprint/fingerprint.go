package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"strings"
)

// EnvKey is the env var holding the optional HMAC secret.
// #nosec G101 -- not a credential; it's an environment variable name.
const EnvKey = "HUDDLE_TOKEN_HMAC_KEY"

// Fingerprinter computes storage digests of refresh-token secrets.
// The zero value uses plain SHA-256.
type Fingerprinter struct {
	key []byte
}

// New returns a Fingerprinter. A nil or empty key selects plain SHA-256;
// otherwise digests are HMAC-SHA256 under the key.
func New(key []byte) Fingerprinter {
	if len(key) == 0 {
		return Fingerprinter{}
	}
	return Fingerprinter{key: append([]byte(nil), key...)}
}

// FromEnv builds a Fingerprinter from HUDDLE_TOKEN_HMAC_KEY.
// An unset/blank key falls back to plain SHA-256.
func FromEnv() Fingerprinter {
	return New([]byte(strings.TrimSpace(os.Getenv(EnvKey))))
}

// Keyed reports whether digests are HMAC-based.
func (f Fingerprinter) Keyed() bool { return len(f.key) > 0 }

// Digest returns the hex digest of token (64 chars).
func (f Fingerprinter) Digest(token string) string {
	if len(f.key) > 0 {
		m := hmac.New(sha256.New, f.key)
		_, _ = m.Write([]byte(token))
		return hex.EncodeToString(m.Sum(nil))
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Compare recomputes the digest of token and compares it against stored in
// constant time. An empty stored digest, or one of a different length than
// the recomputed digest, compares false.
func (f Fingerprinter) Compare(token, stored string) bool {
	if stored == "" {
		return false
	}
	computed := f.Digest(token)
	if len(computed) != len(stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}
