// Package identity owns huddle's user records and their persistence.
//
// The user row is the single synchronization point for session state:
// the stored refresh-token fingerprint, the token version, and the
// failed-login counters all live here, and every mutation that must be
// consistent happens in one atomic single-row update.
package identity
