// Package secret provides secret generation and fingerprinting utilities.
package secret

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint computes the SHA-256 fingerprint of a string.
//
// The returned fingerprint is hex encoded for storage and chaining.
func Fingerprint(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// FingerprintBytes computes the SHA-256 fingerprint of bytes.
func FingerprintBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify verifies a string against an expected fingerprint.
//
// Uses constant-time comparison to prevent timing attacks.
func Verify(s, expected string) bool {
	actual := Fingerprint(s)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1
}

// VerifyBytes verifies bytes against an expected fingerprint.
func VerifyBytes(data []byte, expected string) bool {
	actual := FingerprintBytes(data)
	return subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) == 1
}
