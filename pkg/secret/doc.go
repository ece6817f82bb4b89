// Package secret provides secret generation and fingerprinting utilities.
//
// This package backs every place Sevault needs raw entropy or a stable
// content fingerprint: bootstrap admin secrets, at-rest keyfiles, audit
// record chaining and backup manifest checksums.
//
// Secret Format:
//
//   - Base64 RawURL encoded random bytes (43 characters at the default
//     32-byte length)
//   - Keyfiles use lowercase hex instead
//
// Fingerprint Format:
//
//   - 64 characters of hex-encoded SHA-256
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - SHA-256 fingerprints with constant-time comparison
//   - Secrets are never stored, only fingerprints or slow hashes
package secret
