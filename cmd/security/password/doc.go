// Package password provides one-way password hashing for huddle.
//
// Hashes are Argon2id in PHC string format. Every Hash call draws a fresh
// random salt, so hashing the same password twice yields different strings.
// Compare never fails loudly: a malformed or truncated stored hash simply
// compares false, which keeps login code free of hash-parsing error paths.
package password
